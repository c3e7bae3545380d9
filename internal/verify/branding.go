package verify

import "context"

// Branding is the tenant-customizable payload sent once on connect. The
// admin CRUD surface that edits branding_configs is out of scope here; the
// core only needs to read it.
type Branding struct {
	TenantID  string `json:"tenant_id"`
	ProductName string `json:"product_name"`
	LogoURL   string `json:"logo_url,omitempty"`
	AccentColor string `json:"accent_color,omitempty"`
}

// BrandingProvider resolves a tenant's branding. A real implementation
// reads branding_configs; DefaultBrandingProvider returns a static fallback
// so the core works without that table wired up.
type BrandingProvider interface {
	Branding(ctx context.Context, tenantID string) (Branding, error)
}

type DefaultBrandingProvider struct{}

func (DefaultBrandingProvider) Branding(ctx context.Context, tenantID string) (Branding, error) {
	return Branding{
		TenantID:    tenantID,
		ProductName: "VeraProof",
		AccentColor: "#1b1f3b",
	}, nil
}
