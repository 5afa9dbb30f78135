package models

const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// User is an account. The stored password is a hash and is never decoded
// into a User, so it cannot leak into a response.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

var UserFields = FieldSet{
	Writable: []string{"name", FieldEmail, FieldPassword},
	Required: []string{"name", FieldEmail, FieldPassword},
}

func DecodeUser(f Fields) (User, error) {
	id, err := decodeID(f)
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Name: f["name"], Email: f[FieldEmail]}, nil
}

func CompareUsers(a, b User) int {
	return compareIDs(a.ID, b.ID)
}
