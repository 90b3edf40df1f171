package model

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleDonor    Role = "donor"
	RoleReceiver Role = "receiver"
)

// ParseRole accepts only the two known roles.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDonor:
		return RoleDonor, nil
	case RoleReceiver:
		return RoleReceiver, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Opposite returns the counterparty role: donors are matched with receivers and vice versa.
func (r Role) Opposite() Role {
	if r == RoleDonor {
		return RoleReceiver
	}
	return RoleDonor
}

func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleReceiver
}

type Account struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	City         string    `json:"city" bson:"city"`
	Role         Role      `json:"role" bson:"role"`
	FoodDetails  string    `json:"foodDetails" bson:"food_details"`
	Balance      int64     `json:"balance" bson:"balance"`
	TotalOrders  int64     `json:"totalOrders" bson:"total_orders"`
	LastActive   time.Time `json:"lastActive" bson:"last_active"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}
