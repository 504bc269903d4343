package pbt

import "testing"

func TestExternalArchiveEviction(t *testing.T) {
	rng := newSafeRand(7)
	archive := NewExternalArchive(3, rng)
	for i := 0; i < 4; i++ {
		m := &Member{ID: i}
		archive.Append(m)
		if archive.Len() > 3 {
			t.Fatalf("archive length %d exceeds capacity 3 after insert %d", archive.Len(), i)
		}
	}
	if archive.Len() != 3 {
		t.Errorf("archive length = %d, want 3", archive.Len())
	}
}

func TestExternalArchiveSetSizeShrinks(t *testing.T) {
	rng := newSafeRand(7)
	archive := NewExternalArchive(5, rng)
	for i := 0; i < 5; i++ {
		archive.Append(&Member{ID: i})
	}
	archive.SetSize(2)
	if archive.Len() != 2 {
		t.Errorf("archive length after SetSize(2) = %d, want 2", archive.Len())
	}
}
