// Package domain defines the core types, validation, and pure helper
// functions shared by the parts-search pipeline. It acts as the validation
// gate at pipeline entry points.
package domain

// Brand is a part manufacturer the catalog can filter on.
type Brand string

// Brands the origin catalog supports as listing filters.
const (
	BrandRIDEX         Brand = "RIDEX"
	BrandBrembo        Brand = "Brembo"
	BrandATE           Brand = "ATE"
	BrandBosch         Brand = "Bosch"
	BrandTextar        Brand = "Textar"
	BrandZimmermann    Brand = "Zimmermann"
	BrandJurid         Brand = "Jurid"
	BrandFebiBilstein  Brand = "Febi Bilstein"
	BrandTRW           Brand = "TRW"
	BrandMeyle         Brand = "Meyle"
)

// ValidBrands is the set of recognised brand filters.
var ValidBrands = map[Brand]bool{
	BrandRIDEX: true, BrandBrembo: true, BrandATE: true, BrandBosch: true,
	BrandTextar: true, BrandZimmermann: true, BrandJurid: true,
	BrandFebiBilstein: true, BrandTRW: true, BrandMeyle: true,
}

// PartPosition narrows a part query to an axle position.
type PartPosition string

const (
	PositionFront PartPosition = "front"
	PositionRear  PartPosition = "rear"
)

// PartQuery is the caller-owned input to a parts search. It is immutable
// through the pipeline.
type PartQuery struct {
	RawText         string
	PositionHint    PartPosition
	VehicleFragment string
	BrandFilters    []Brand
	PriceMin        *float64
	PriceMax        *float64
	MaxResults      int
}

// VehicleIdentity is a resolved vehicle descriptor. CatalogURL and
// SearchCode are derived, never set independently: if any of Brand, Model,
// Engine, or KBAID is missing both stay empty.
type VehicleIdentity struct {
	VIN        string `json:"vin,omitempty"`
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Engine     string `json:"engine"`
	KBAID      string `json:"kba_id"`
	CatalogURL string `json:"url"`
	SearchCode string `json:"search_code"`
}

// Complete reports whether all four resolver fields are present.
func (v VehicleIdentity) Complete() bool {
	return v.Brand != "" && v.Model != "" && v.Engine != "" && v.KBAID != ""
}

// ProductListing is one scraped product. ProductURL is the identity key:
// cards without a resolvable URL are dropped, never emitted empty.
// PriceValue is computation-only and excluded from the wire shape.
type ProductListing struct {
	ProductURL   string  `json:"product_url"`
	Title        string  `json:"title"`
	ImageURL     string  `json:"image_url"`
	PriceRaw     string  `json:"price"`
	PriceValue   float64 `json:"-"`
	SellerName   string  `json:"seller_name"`
	DeliveryTime string  `json:"delivery_time"`
	Description  string  `json:"description"`
	Brand        string  `json:"brand"`
	Position     string  `json:"position,omitempty"`
}

// VehicleModel describes the vehicle scope a search actually ran with.
type VehicleModel struct {
	BrandModel string `json:"brand_model"`
	Engine     string `json:"engine,omitempty"`
	KBAID      string `json:"kba_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

// SearchParameters reports what the pipeline actually searched with, not
// what the caller asked for. TotalProducts counts post-filter listings.
type SearchParameters struct {
	VINRecognized      string       `json:"vin_recognized,omitempty"`
	CodeRecognized     string       `json:"kba_recognized,omitempty"`
	IdentifiedPartType string       `json:"identified_part_type,omitempty"`
	VehicleModel       VehicleModel `json:"vehicle_model"`
	TotalProducts      int          `json:"total_products"`
}

// SearchResult is the aggregated outcome of one orchestrated search.
type SearchResult struct {
	Listings       []ProductListing `json:"products"`
	ParametersUsed SearchParameters `json:"search_parameters_used"`
}

// SearchResponse is the envelope returned to the calling layer.
type SearchResponse struct {
	Status string       `json:"status"`
	Data   SearchResult `json:"data"`
}

// DocumentFields is the best-effort extraction from a registration
// document's OCR text. Every field is independently optional.
type DocumentFields struct {
	VIN string `json:"vin,omitempty"`
	HSN string `json:"hsn,omitempty"`
	TSN string `json:"tsn,omitempty"`
}

// Sentinel value used when a foreign-markup field cannot be extracted.
const FieldUnavailable = "N/A"
