package model

type Product struct {
	BaseModel
	Title       string   `gorm:"type:varchar(255);not null" json:"title" validate:"required"`
	Description string   `gorm:"type:text" json:"description"`
	Code        string   `gorm:"type:varchar(50);uniqueIndex;not null" json:"code" validate:"required"`
	Price       float64  `gorm:"not null;default:0" json:"price" validate:"gte=0"`
	Status      bool     `gorm:"default:true" json:"status"`
	Stock       int      `gorm:"not null;default:0" json:"stock" validate:"gte=0"`
	Category    string   `gorm:"type:varchar(100)" json:"category"`
	Thumbnails  []string `gorm:"serializer:json" json:"thumbnails"`
}
