package entity

import "fmt"

// CategoryPatch is a partial update. A nil field means "no change".
type CategoryPatch struct {
	Name *string
}

func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil
}

// TaskPatch is a partial update. A nil field means "no change".
type TaskPatch struct {
	Name       *string
	Done       *bool
	CategoryID *string
}

func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.Done == nil && p.CategoryID == nil
}

// Attributes is a string-keyed set of field assignments, as accepted by the
// generic create and update calls.
type Attributes map[string]any

// Attribute keys understood by DecodeCategoryPatch and DecodeTaskPatch.
const (
	AttrName     = "name"
	AttrDone     = "isDone"
	AttrCategory = "category"
	AttrCreated  = "created"
	AttrID       = "id"
)

// AttributeError reports an attribute map entry that does not map onto a
// mutable field of the target kind.
type AttributeError struct {
	Kind   Kind
	Key    string
	Reason string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s attribute %q: %s", e.Kind, e.Key, e.Reason)
}

func DecodeCategoryPatch(attrs Attributes) (CategoryPatch, error) {
	var p CategoryPatch
	for key, val := range attrs {
		switch key {
		case AttrName:
			s, ok := val.(string)
			if !ok {
				return CategoryPatch{}, typeMismatch(KindCategory, key, "string", val)
			}
			p.Name = &s
		case AttrCreated, AttrID:
			return CategoryPatch{}, &AttributeError{Kind: KindCategory, Key: key, Reason: "assigned by the store"}
		default:
			return CategoryPatch{}, &AttributeError{Kind: KindCategory, Key: key, Reason: "unknown attribute"}
		}
	}
	return p, nil
}

func DecodeTaskPatch(attrs Attributes) (TaskPatch, error) {
	var p TaskPatch
	for key, val := range attrs {
		switch key {
		case AttrName:
			s, ok := val.(string)
			if !ok {
				return TaskPatch{}, typeMismatch(KindTask, key, "string", val)
			}
			p.Name = &s
		case AttrDone:
			b, ok := val.(bool)
			if !ok {
				return TaskPatch{}, typeMismatch(KindTask, key, "bool", val)
			}
			p.Done = &b
		case AttrCategory:
			id, err := categoryID(val)
			if err != nil {
				return TaskPatch{}, &AttributeError{Kind: KindTask, Key: key, Reason: err.Error()}
			}
			p.CategoryID = &id
		case AttrCreated, AttrID:
			return TaskPatch{}, &AttributeError{Kind: KindTask, Key: key, Reason: "assigned by the store"}
		default:
			return TaskPatch{}, &AttributeError{Kind: KindTask, Key: key, Reason: "unknown attribute"}
		}
	}
	return p, nil
}

func categoryID(val any) (string, error) {
	var id string
	switch v := val.(type) {
	case string:
		id = v
	case CategoryRef:
		id = v.ID
	case Category:
		id = v.ID
	case *Category:
		if v == nil {
			return "", fmt.Errorf("nil category")
		}
		id = v.ID
	default:
		return "", fmt.Errorf("expected category or category id, got %T", val)
	}
	if id == "" {
		return "", fmt.Errorf("empty category id")
	}
	return id, nil
}

func typeMismatch(kind Kind, key, want string, got any) error {
	return &AttributeError{Kind: kind, Key: key, Reason: fmt.Sprintf("expected %s, got %T", want, got)}
}
