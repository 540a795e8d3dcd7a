package model

import "time"

// User is the authenticated profile returned by the API
type User struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	Name          string        `json:"name"`
	Role          string        `json:"role"`
	Plan          string        `json:"plan"`
	Phone         string        `json:"phone,omitempty"`
	Company       string        `json:"company,omitempty"`
	Address       Address       `json:"address"`
	Notifications Notifications `json:"notifications"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Address is the postal address attached to a profile
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Notifications holds per-channel notification preferences
type Notifications struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// UserUpdate is a partial profile change. Nil fields are left untouched.
type UserUpdate struct {
	Name          *string        `json:"name,omitempty"`
	Phone         *string        `json:"phone,omitempty"`
	Company       *string        `json:"company,omitempty"`
	Plan          *string        `json:"plan,omitempty"`
	Address       *Address       `json:"address,omitempty"`
	Notifications *Notifications `json:"notifications,omitempty"`
}

// Merge returns a copy of u with every non-nil field of p applied
func (u User) Merge(p UserUpdate) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
	if p.Plan != nil {
		u.Plan = *p.Plan
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.Notifications != nil {
		u.Notifications = *p.Notifications
	}
	return u
}
