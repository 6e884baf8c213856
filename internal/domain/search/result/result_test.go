package result

import "testing"

func TestNew(t *testing.T) {
	meta := map[string]string{"core_domain": "Healthcare"}

	r := New("T-1", 0.42, "Supply of MRI machines", meta)

	if r.ID() != "T-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Distance() != 0.42 {
		t.Errorf("Distance() = %f", r.Distance())
	}
	if r.Score() != 0 {
		t.Errorf("Score() = %f, want 0 before calibration", r.Score())
	}
	if r.Text() != "Supply of MRI machines" {
		t.Errorf("Text() = %q", r.Text())
	}
	if r.Field("core_domain") != "Healthcare" {
		t.Errorf("Field() = %q", r.Field("core_domain"))
	}
	if r.Field("missing") != "" {
		t.Errorf("Field(missing) = %q", r.Field("missing"))
	}
}

func TestWithScore_Copies(t *testing.T) {
	r := New("T-1", 0.5, "", nil)
	scored := r.WithScore(100)

	if scored.Score() != 100 {
		t.Errorf("Score() = %f", scored.Score())
	}
	if r.Score() != 0 {
		t.Errorf("original mutated: Score() = %f", r.Score())
	}
	if r.Metadata() != nil {
		t.Errorf("Metadata() = %v, want nil", r.Metadata())
	}
}
