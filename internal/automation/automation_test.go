package automation

import (
	"testing"

	"github.com/neomind/edge/internal/rules"
	"github.com/neomind/edge/internal/transform"
)

func TestListMergesRulesAndTransforms(t *testing.T) {
	scheduler := rules.NewScheduler(nil, nil, 0, nil)
	scheduler.AddRule(&rules.Rule{Metadata: rules.AutomationMetadata{ID: "rule-1", Name: "r1", Enabled: true}})

	engine := transform.New(nil, nil)
	engine.AddTransform(transform.Transform{Metadata: transform.AutomationMetadata{ID: "xform-1", Name: "t1", Enabled: true}})

	summaries := List(scheduler, engine)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	var sawRule, sawTransform bool
	for _, s := range summaries {
		switch s.Kind {
		case KindRule:
			sawRule = s.Metadata.ID == "rule-1"
		case KindTransform:
			sawTransform = s.Metadata.ID == "xform-1"
		}
	}
	if !sawRule || !sawTransform {
		t.Fatalf("expected both kinds represented: %+v", summaries)
	}
}

func TestListHandlesNilSources(t *testing.T) {
	if got := List(nil, nil); len(got) != 0 {
		t.Fatalf("expected empty summary list, got %v", got)
	}
}
