package models

import "strings"

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

var TagFields = FieldSet{
	Writable: []string{"name"},
	Required: []string{"name"},
}

func DecodeTag(f Fields) (Tag, error) {
	id, err := decodeID(f)
	if err != nil {
		return Tag{}, err
	}
	return Tag{ID: id, Name: f["name"]}, nil
}

// CompareTags orders lexicographically by name.
func CompareTags(a, b Tag) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return compareIDs(a.ID, b.ID)
}
