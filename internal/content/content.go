// Package content はマーケティングサイトの静的コンテンツを提供する。
// コンテンツはバイナリに埋め込んだJSONから起動時に一度だけ読み込む。
package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed site.json
var siteJSON []byte

// NavLink はナビゲーションのリンク。
type NavLink struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Stat は実績の数値表示。
type Stat struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Service は提供サービス。
type Service struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Project はポートフォリオの制作事例。
type Project struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ImageURL    string   `json:"image_url"`
	LiveURL     string   `json:"live_url"`
}

// Testimonial は顧客の声。
type Testimonial struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Content string `json:"content"`
	Rating  int    `json:"rating"`
}

// PricingTier は料金プラン。
type PricingTier struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Period      string   `json:"period"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	CTA         string   `json:"cta"`
	Popular     bool     `json:"popular"`
}

// Site はマーケティングページ全体のコンテンツ。
type Site struct {
	Company      string        `json:"company"`
	NavLinks     []NavLink     `json:"nav_links"`
	Stats        []Stat        `json:"stats"`
	Services     []Service     `json:"services"`
	Projects     []Project     `json:"projects"`
	Testimonials []Testimonial `json:"testimonials"`
	PricingTiers []PricingTier `json:"pricing_tiers"`
}

// Load は埋め込みJSONからSiteを読み込む。
func Load() (*Site, error) {
	return parse(siteJSON)
}

func parse(data []byte) (*Site, error) {
	site := &Site{}
	if err := json.Unmarshal(data, site); err != nil {
		return nil, fmt.Errorf("failed to parse site content: %w", err)
	}
	if site.Company == "" {
		return nil, fmt.Errorf("site content has no company name")
	}
	return site, nil
}
