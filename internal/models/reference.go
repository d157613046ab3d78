package models

// CustomerSummary is one row of GET /customers/.
type CustomerSummary struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Email                   string  `json:"email"`
	Phone                   string  `json:"phone"`
	Address                 string  `json:"address"`
	AddressLine1            string  `json:"address_line1,omitempty"`
	AddressLine2            string  `json:"address_line2,omitempty"`
	City                    string  `json:"city,omitempty"`
	Province                string  `json:"province,omitempty"`
	Country                 string  `json:"country,omitempty"`
	PostalCode              string  `json:"postal_code,omitempty"`
	Notes                   string  `json:"notes"`
	Representative          *string `json:"representative,omitempty"`
	RepresentativeID        *string `json:"representative_id,omitempty"`
	RepresentativeUsername  *string `json:"representative_username,omitempty"`
	RepresentativeEmail     *string `json:"representative_email,omitempty"`
	RepresentativeFirstName *string `json:"representative_first_name,omitempty"`
	RepresentativeLastName  *string `json:"representative_last_name,omitempty"`
	CreatedAt               string  `json:"created_at"`
}

// UserSummary is one row of GET /users/.
type UserSummary struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Phone         string   `json:"phone"`
	IsActive      bool     `json:"is_active"`
	IsStaff       bool     `json:"is_staff"`
	UserType      Role     `json:"user_type"`
	Customer      *string  `json:"customer"`
	GroupsDisplay []string `json:"groups_display"`
}

// GroupSummary is one row of GET /groups/.
type GroupSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CustomerInput is the body of customer create and update calls.
type CustomerInput struct {
	Name           string  `json:"name,omitempty"`
	Email          string  `json:"email,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Address        string  `json:"address,omitempty"`
	AddressLine1   string  `json:"address_line1,omitempty"`
	AddressLine2   string  `json:"address_line2,omitempty"`
	City           string  `json:"city,omitempty"`
	Province       string  `json:"province,omitempty"`
	Country        string  `json:"country,omitempty"`
	PostalCode     string  `json:"postal_code,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	Representative *string `json:"representative,omitempty"`
}

// UserInput is the body of POST /users/create/.
type UserInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"` // pragma: allowlist secret
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// UserUpdate is the body of PATCH /users/{id}/.
type UserUpdate struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
	IsStaff   *bool   `json:"is_staff,omitempty"`
	Groups    []int   `json:"groups,omitempty"`
}
