package models

import "strconv"

const (
	DefaultPriorityColor = "#000000"
	DefaultPriorityOrder = 1
)

// Priority is a named, coloured rank. Lower Order sorts first.
type Priority struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

var PriorityFields = FieldSet{
	Writable: []string{"name", "color", "order"},
	Required: []string{"name"},
	Defaults: Fields{"color": DefaultPriorityColor, "order": strconv.Itoa(DefaultPriorityOrder)},
	Integers: []string{"order"},
}

func DecodePriority(f Fields) (Priority, error) {
	id, err := decodeID(f)
	if err != nil {
		return Priority{}, err
	}
	order, err := decodeInt(f, "order", DefaultPriorityOrder)
	if err != nil {
		return Priority{}, err
	}
	color := f["color"]
	if color == "" {
		color = DefaultPriorityColor
	}
	return Priority{
		ID:    id,
		Name:  f["name"],
		Color: color,
		Order: order,
	}, nil
}

// ComparePriorities orders by Order, then ID so equal orders are stable.
func ComparePriorities(a, b Priority) int {
	if a.Order != b.Order {
		if a.Order < b.Order {
			return -1
		}
		return 1
	}
	return compareIDs(a.ID, b.ID)
}

func compareIDs(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
