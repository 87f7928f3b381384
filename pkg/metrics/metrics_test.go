package metrics

import "testing"

func TestDisabledByDefault(t *testing.T) {
	if IsEnabled() {
		t.Skip("registry already initialized by another test in this process")
	}
	if GetRegistry() != nil {
		t.Error("GetRegistry should be nil before InitRegistry")
	}
	if Get() != nil {
		t.Error("Get should be nil before InitRegistry")
	}
}

func TestInitRegistryIdempotent(t *testing.T) {
	m1 := InitRegistry()
	m2 := InitRegistry()
	if m1 != m2 {
		t.Error("InitRegistry should return the same Metrics on repeated calls")
	}
	if !IsEnabled() {
		t.Error("IsEnabled should be true after InitRegistry")
	}
}
