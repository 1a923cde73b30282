package rowguard

// ConfigBuilder provides a fluent API for assembling configurations in code.
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: &Config{
			Version:   1,
			Retention: []RetentionRule{},
			Engine: EngineConfig{
				HierarchyCacheTTL: 1000,
				AuthoritySLAHours: 72,
			},
		},
	}
}

func (b *ConfigBuilder) Version(v uint16) *ConfigBuilder {
	b.cfg.Version = v
	return b
}

func (b *ConfigBuilder) EngineSettings(fn func(*EngineConfig)) *ConfigBuilder {
	fn(&b.cfg.Engine)
	return b
}

func (b *ConfigBuilder) Retain(category RetentionCategory, maxAgeDays int) *ConfigBuilder {
	b.cfg.Retention = append(b.cfg.Retention, RetentionRule{Category: category, MaxAgeDays: maxAgeDays})
	return b
}

func (b *ConfigBuilder) AddDistributor(id, name string) *ConfigBuilder {
	b.cfg.Organizations = append(b.cfg.Organizations, &Organization{
		Row:           Row{ID: id},
		Name:          name,
		IsDistributor: true,
	})
	return b
}

func (b *ConfigBuilder) AddPrincipal(id, name, distributorID string) *ConfigBuilder {
	b.cfg.Organizations = append(b.cfg.Organizations, &Organization{
		Row:           Row{ID: id},
		Name:          name,
		IsPrincipal:   true,
		DistributorID: distributorID,
	})
	return b
}

func (b *ConfigBuilder) AddOrganization(o *Organization) *ConfigBuilder {
	b.cfg.Organizations = append(b.cfg.Organizations, o)
	return b
}

func (b *ConfigBuilder) AddProduct(p *Product) *ConfigBuilder {
	b.cfg.Products = append(b.cfg.Products, p)
	return b
}

func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

func (b *ConfigBuilder) ToYAML() ([]byte, error) {
	return b.cfg.ToYAML()
}

func (b *ConfigBuilder) ToJSON() ([]byte, error) {
	return b.cfg.ToJSON()
}

func (b *ConfigBuilder) ToBinary() ([]byte, error) {
	return EncodeBinaryConfig(b.cfg)
}

func (b *ConfigBuilder) ToDSL() ([]byte, error) {
	return NewDSLEncoder().Encode(b.cfg)
}

// ProductBuilder assembles a catalog product for seeding.
type ProductBuilder struct {
	p *Product
}

func NewProductBuilder(id, sku, name string) *ProductBuilder {
	return &ProductBuilder{
		p: &Product{
			Row:      Row{ID: id},
			SKU:      sku,
			Name:     name,
			IsActive: true,
		},
	}
}

func (p *ProductBuilder) Category(c ProductCategory) *ProductBuilder {
	p.p.Category = c
	return p
}

func (p *ProductBuilder) ListPrice(price float64) *ProductBuilder {
	p.p.ListPrice = price
	return p
}

func (p *ProductBuilder) Inactive() *ProductBuilder {
	p.p.IsActive = false
	return p
}

func (p *ProductBuilder) Build() *Product {
	return p.p
}
