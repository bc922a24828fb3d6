package core

import "testing"

func TestRedactSensitiveMap_RedactsSecretMaterial(t *testing.T) {
	out := RedactSensitiveMap(map[string]any{
		"application_secret": "hunter2",
		"access_token":       "sq0atp-abc",
		"refresh_token":      "sq0rt-def",
		"authorization":      "Client hunter2",
		"tenant_id":          "tenant-7",
		"order_id":           "order-42",
	})

	for _, key := range []string{"application_secret", "access_token", "refresh_token", "authorization"} {
		if out[key] != RedactedValue {
			t.Fatalf("expected %q to be redacted, got %v", key, out[key])
		}
	}
	if out["tenant_id"] != "tenant-7" {
		t.Fatalf("traceability keys must survive, got %v", out["tenant_id"])
	}
	if out["order_id"] != "order-42" {
		t.Fatalf("traceability keys must survive, got %v", out["order_id"])
	}
}

func TestRedactSensitiveMap_WalksNestedValues(t *testing.T) {
	out := RedactSensitiveMap(map[string]any{
		"request": map[string]any{
			"api_key": "key",
			"body":    []any{map[string]any{"password": "pw", "note": "ok"}},
		},
	})

	request := out["request"].(map[string]any)
	if request["api_key"] != RedactedValue {
		t.Fatalf("nested key not redacted: %v", request["api_key"])
	}
	body := request["body"].([]any)
	item := body[0].(map[string]any)
	if item["password"] != RedactedValue {
		t.Fatalf("nested slice map not redacted: %v", item["password"])
	}
	if item["note"] != "ok" {
		t.Fatalf("non-sensitive values must pass through, got %v", item["note"])
	}
}

func TestRedactSensitiveMap_EmptyInput(t *testing.T) {
	out := RedactSensitiveMap(nil)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", out)
	}
}
