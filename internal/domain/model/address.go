package model

import "strings"

// 住所（値オブジェクト）
// Orderにshipping_/billing_のprefixで埋め込む。別テーブルにはしない。
type Address struct {
	RecipientName string `gorm:"type:varchar(255)" json:"recipient_name" validate:"required,max=255"`
	Street        string `gorm:"type:varchar(255)" json:"street" validate:"required,max=255"`
	City          string `gorm:"type:varchar(100)" json:"city" validate:"required,max=100"`
	State         string `gorm:"type:varchar(100)" json:"state" validate:"required,max=100"`
	ZipCode       string `gorm:"type:varchar(20)" json:"zip_code" validate:"required,max=20"`
	Country       string `gorm:"type:varchar(100)" json:"country" validate:"required,max=100"`
	Phone         string `gorm:"type:varchar(30)" json:"phone" validate:"omitempty,max=30"`
}

// 必須項目のうち空のものを返す
func (a Address) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"recipient_name", a.RecipientName},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip_code", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
