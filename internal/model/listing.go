package model

import "time"

type Donation struct {
	ID          string    `json:"id" bson:"_id"`
	Username    string    `json:"username,omitempty" bson:"username,omitempty"`
	City        string    `json:"city,omitempty" bson:"city,omitempty"`
	FoodName    string    `json:"foodName" bson:"food_name"`
	Quantity    string    `json:"quantity" bson:"quantity"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	ExpiryDate  string    `json:"expiryDate,omitempty" bson:"expiry_date,omitempty"`
	FoodImage   string    `json:"foodImage,omitempty" bson:"food_image,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

type FoodRequest struct {
	ID         string    `json:"id" bson:"_id"`
	Username   string    `json:"username,omitempty" bson:"username,omitempty"`
	Name       string    `json:"name,omitempty" bson:"name,omitempty"`
	Phone      string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Address    string    `json:"address,omitempty" bson:"address,omitempty"`
	ItemNeeded string    `json:"itemNeeded" bson:"item_needed"`
	Quantity   string    `json:"quantity,omitempty" bson:"quantity,omitempty"`
	DonorName  string    `json:"donorName,omitempty" bson:"donor_name,omitempty"`
	Location   string    `json:"location,omitempty" bson:"location,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}
