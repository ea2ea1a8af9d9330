package persona

import "testing"

func TestValidate(t *testing.T) {
	if err := DefaultTraits().Validate(); err != nil {
		t.Errorf("default traits invalid: %v", err)
	}

	bad := Traits{"curiosity": 1.2}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for out-of-range trait")
	}
}

func TestClamp(t *testing.T) {
	clamped := Traits{"a": -0.5, "b": 1.5, "c": 0.5}.Clamp()
	if clamped["a"] != 0 || clamped["b"] != 1 || clamped["c"] != 0.5 {
		t.Errorf("Clamp = %v", clamped)
	}
}

func TestDominantIsStable(t *testing.T) {
	traits := Traits{"zeta": 0.9, "alpha": 0.9, "mid": 0.5}
	name, level := traits.Dominant()
	if name != "alpha" || level != 0.9 {
		t.Errorf("Dominant = %s/%v, want alpha/0.9 (alphabetical tie-break)", name, level)
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	if _, err := New("x", Traits{"focus": 2}); err == nil {
		t.Error("expected validation error")
	}

	p, err := New("quorum", nil)
	if err != nil {
		t.Fatalf("New with defaults failed: %v", err)
	}
	status := p.Status()
	if status["name"] != "quorum" || status["dominant_trait"] != "intelligence" {
		t.Errorf("Status = %v", status)
	}
}
