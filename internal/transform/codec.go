package transform

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/neomind/edge/internal/neoerr"
)

func decodeValue(format CodecFormat, s string) (any, error) {
	switch format {
	case FormatHex:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, neoerr.Validationf("decode hex: %v", err)
		}
		return string(b), nil
	case FormatBase64:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, neoerr.Validationf("decode base64: %v", err)
		}
		return string(b), nil
	case FormatBytes:
		return []byte(s), nil
	case FormatCSV:
		r := csv.NewReader(strings.NewReader(s))
		rec, err := r.Read()
		if err != nil {
			return nil, neoerr.Validationf("decode csv: %v", err)
		}
		out := make([]any, len(rec))
		for i, f := range rec {
			out[i] = f
		}
		return out, nil
	case FormatURL:
		decoded, err := url.QueryUnescape(s)
		if err != nil {
			return nil, neoerr.Validationf("decode url: %v", err)
		}
		return decoded, nil
	default:
		return nil, neoerr.Validationf("unknown decode format %q", format)
	}
}

func encodeValue(format CodecFormat, v any) (string, error) {
	s := stringify(v)
	switch format {
	case FormatHex:
		return hex.EncodeToString([]byte(s)), nil
	case FormatBase64:
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	case FormatBytes:
		return s, nil
	case FormatCSV:
		var b strings.Builder
		w := csv.NewWriter(&b)
		if arr, ok := v.([]any); ok {
			rec := make([]string, len(arr))
			for i, e := range arr {
				rec[i] = stringify(e)
			}
			_ = w.Write(rec)
		} else {
			_ = w.Write([]string{s})
		}
		w.Flush()
		return strings.TrimRight(b.String(), "\n"), nil
	case FormatURL:
		return url.QueryEscape(s), nil
	default:
		return "", neoerr.Validationf("unknown encode format %q", format)
	}
}
