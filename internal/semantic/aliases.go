package semantic

import "sync"

// AliasTables holds the bilingual location, device-type, and nickname
// alias sets used by compound decomposition and query expansion. Seed
// data is hard-coded; callers extend it at runtime via AddAlias.
type AliasTables struct {
	mu sync.RWMutex

	// locations maps every known location token (either language) to its
	// canonical English form.
	locations map[string]string
	// deviceTypes maps every known device-type token to its canonical
	// English form.
	deviceTypes map[string]string
	// nicknames maps a canonical id (or name) to additional name variants
	// a user might call it.
	nicknames map[string][]string
}

func NewAliasTables() *AliasTables {
	t := &AliasTables{
		locations:   map[string]string{},
		deviceTypes: map[string]string{},
		nicknames:   map[string][]string{},
	}
	t.seed()
	return t
}

func (t *AliasTables) seed() {
	locationPairs := map[string]string{
		"客厅": "living_room", "living room": "living_room", "livingroom": "living_room",
		"卧室": "bedroom", "bedroom": "bedroom",
		"厨房": "kitchen", "kitchen": "kitchen",
		"浴室": "bathroom", "bathroom": "bathroom", "卫生间": "bathroom",
		"走廊": "corridor", "corridor": "corridor", "hallway": "corridor",
		"阳台": "balcony", "balcony": "balcony",
		"书房": "study", "study": "study",
		"车库": "garage", "garage": "garage",
		"花园": "garden", "garden": "garden",
	}
	for k, v := range locationPairs {
		t.locations[k] = v
	}

	typePairs := map[string]string{
		"灯": "light", "light": "light", "lamp": "light",
		"开关": "switch", "switch": "switch",
		"传感器": "sensor", "sensor": "sensor",
		"插座": "outlet", "outlet": "outlet", "plug": "outlet",
		"空调": "ac", "ac": "ac", "air conditioner": "ac",
		"风扇": "fan", "fan": "fan",
		"摄像头": "camera", "camera": "camera",
		"门锁": "lock", "lock": "lock",
		"窗帘": "curtain", "curtain": "curtain",
	}
	for k, v := range typePairs {
		t.deviceTypes[k] = v
	}
}

func (t *AliasTables) AddAlias(kind, token, canonical string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case "location":
		t.locations[token] = canonical
	case "device_type":
		t.deviceTypes[token] = canonical
	case "nickname":
		t.nicknames[canonical] = append(t.nicknames[canonical], token)
	}
}

func (t *AliasTables) Nicknames(canonical string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.nicknames[canonical]...)
}

// MatchLocationToken reports whether token is a known location alias and
// its canonical form.
func (t *AliasTables) MatchLocationToken(token string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	canon, ok := t.locations[token]
	return canon, ok
}

// MatchTypeToken reports whether token is a known device-type alias and
// its canonical form.
func (t *AliasTables) MatchTypeToken(token string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	canon, ok := t.deviceTypes[token]
	return canon, ok
}

// LocationTokens returns every known location token, both languages.
func (t *AliasTables) LocationTokens() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.locations))
	for k := range t.locations {
		out = append(out, k)
	}
	return out
}

// TypeTokens returns every known device-type token, both languages.
func (t *AliasTables) TypeTokens() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.deviceTypes))
	for k := range t.deviceTypes {
		out = append(out, k)
	}
	return out
}
