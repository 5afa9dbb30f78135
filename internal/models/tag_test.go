package models

import (
	"slices"
	"testing"
)

func TestCompareTags_ByName(t *testing.T) {
	got := []Tag{{ID: 2, Name: "Frontend"}, {ID: 3, Name: "Api"}, {ID: 1, Name: "Backend"}}
	slices.SortFunc(got, CompareTags)

	expectedOrder := []string{"Api", "Backend", "Frontend"}
	for i, name := range expectedOrder {
		if got[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, got[i].Name)
		}
	}
}

func TestDecodeUser_NeverCarriesPassword(t *testing.T) {
	u, err := DecodeUser(Fields{"id": "1", "name": "Ana", "email": "ana@example.com", "password": "$2a$hash"})
	if err != nil {
		t.Fatalf("DecodeUser failed: %v", err)
	}
	want := User{ID: 1, Name: "Ana", Email: "ana@example.com"}
	if u != want {
		t.Errorf("expected %+v, got %+v", want, u)
	}
}
