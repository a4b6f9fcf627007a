package repository

import (
	"time"

	"gorm.io/datatypes"
)

// User is the owner of detection history. Rows are provisioned from verified
// token subjects the first time a user records a detection.
type User struct {
	ID         string             `gorm:"column:id;primaryKey;size:64"`
	Email      string             `gorm:"column:email;size:255;index"`
	FullName   string             `gorm:"column:full_name;size:255"`
	Timezone   string             `gorm:"column:timezone;size:64"`
	IsActive   bool               `gorm:"column:is_active;default:true"`
	CreatedAt  time.Time          `gorm:"column:created_at"`
	UpdatedAt  time.Time          `gorm:"column:updated_at"`
	Detections []DetectionHistory `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// DetectionHistory is a snapshot of one successful diagnosis.
type DetectionHistory struct {
	ID              uint                        `gorm:"primaryKey"`
	UserID          string                      `gorm:"column:user_id;size:64;not null;index"`
	DiseaseID       string                      `gorm:"column:disease_id;size:100;index"`
	DiseaseName     string                      `gorm:"column:disease_name;size:255"`
	ScientificName  string                      `gorm:"column:scientific_name;size:255"`
	Confidence      float64                     `gorm:"column:confidence"`
	Severity        string                      `gorm:"column:severity;size:32"`
	IsHealthy       bool                        `gorm:"column:is_healthy"`
	ImageURL        string                      `gorm:"column:image_url;size:1024"`
	Description     string                      `gorm:"column:description;type:text"`
	Symptoms        datatypes.JSONSlice[string] `gorm:"column:symptoms"`
	Recommendations datatypes.JSONSlice[string] `gorm:"column:recommendations"`
	Prevention      datatypes.JSONSlice[string] `gorm:"column:prevention"`
	DetectedAt      time.Time                   `gorm:"column:detected_at;index"`
}

// TableName overrides the default table name.
func (DetectionHistory) TableName() string {
	return "detection_history"
}

// Disease is a knowledge-base entry describing one condition.
type Disease struct {
	ID                uint                        `gorm:"primaryKey"`
	DiseaseID         string                      `gorm:"column:disease_id;size:100;uniqueIndex"`
	Name              string                      `gorm:"column:name;size:255"`
	ScientificName    string                      `gorm:"column:scientific_name;size:255"`
	Category          string                      `gorm:"column:category;size:64;index"`
	Severity          string                      `gorm:"column:severity;size:32"`
	Description       string                      `gorm:"column:description;type:text"`
	Symptoms          datatypes.JSONSlice[string] `gorm:"column:symptoms"`
	Causes            datatypes.JSONSlice[string] `gorm:"column:causes"`
	AffectedPlants    datatypes.JSONSlice[string] `gorm:"column:affected_plants"`
	Prevention        datatypes.JSONSlice[string] `gorm:"column:prevention"`
	Treatment         datatypes.JSONSlice[string] `gorm:"column:treatment"`
	OrganicSolutions  datatypes.JSONSlice[string] `gorm:"column:organic_solutions"`
	ChemicalSolutions datatypes.JSONSlice[string] `gorm:"column:chemical_solutions"`
	AdditionalTips    datatypes.JSONSlice[string] `gorm:"column:additional_tips"`
	ThumbnailURL      string                      `gorm:"column:thumbnail_url;size:1024"`
	CreatedAt         time.Time                   `gorm:"column:created_at"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (Disease) TableName() string {
	return "diseases"
}

// DiseaseCount is one row of the most-common-diseases aggregation.
type DiseaseCount struct {
	DiseaseID   string `json:"disease_id"`
	DiseaseName string `json:"disease_name"`
	Count       int64  `json:"count"`
}
