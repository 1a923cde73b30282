package rowguard

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration: tunables, retention rules, and
// optional seed rows for bootstrap.
type Config struct {
	Version       uint16          `json:"version" yaml:"version"`
	Engine        EngineConfig    `json:"engine" yaml:"engine"`
	Retention     []RetentionRule `json:"retention" yaml:"retention"`
	Organizations []*Organization `json:"organizations,omitempty" yaml:"organizations,omitempty"`
	Products      []*Product      `json:"products,omitempty" yaml:"products,omitempty"`
}

// RetentionRule bounds how long contacts in a category may sit untouched
// before the sweep tombstones them. MaxAgeDays <= 0 means no automatic sweep
// for that category (legal_hold is the usual case).
type RetentionRule struct {
	Category   RetentionCategory `json:"category" yaml:"category"`
	MaxAgeDays int               `json:"max_age_days" yaml:"max_age_days"`
}

// EngineConfig carries runtime tunables. Durations are milliseconds except
// the SLA, which is hours to match how the obligation is written.
type EngineConfig struct {
	HierarchyCacheTTL   int64 `json:"hierarchy_cache_ttl_ms" yaml:"hierarchy_cache_ttl_ms"`
	AuthoritySLAHours   int64 `json:"authority_sla_hours" yaml:"authority_sla_hours"`
	AllowAnonymousDemo  *bool `json:"allow_anonymous_demo,omitempty" yaml:"allow_anonymous_demo,omitempty"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBinary loads from the compact binary format.
func (l *ConfigLoader) LoadBinary(data []byte) (*Config, error) {
	r := bytes.NewReader(data)
	return decodeBinaryConfig(r)
}

// LoadDSL loads from the line-oriented text format.
func (l *ConfigLoader) LoadDSL(data []byte) (*Config, error) {
	return NewDSLParser().Parse(data)
}

// EncodeBinaryConfig encodes config to binary format
func EncodeBinaryConfig(cfg *Config) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeBinaryConfig(cfg, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate rejects configs with unknown retention categories or negative SLA.
func (c *Config) Validate() error {
	for _, r := range c.Retention {
		if !r.Category.Valid() {
			return fmt.Errorf("rowguard: unknown retention category %q", r.Category)
		}
	}
	if c.Engine.AuthoritySLAHours < 0 {
		return fmt.Errorf("rowguard: authority_sla_hours must be >= 0")
	}
	for _, o := range c.Organizations {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	for _, p := range c.Products {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplyConfig applies tunables and retention rules to the engine, then
// upserts any seed rows. Seed rows bypass the role matrix (bootstrap is an
// operator action) but still pass field validation via Validate above.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Engine.HierarchyCacheTTL > 0 {
		e.hierCacheTTL = time.Duration(cfg.Engine.HierarchyCacheTTL) * time.Millisecond
	}
	if cfg.Engine.AuthoritySLAHours > 0 {
		e.authoritySLA = time.Duration(cfg.Engine.AuthoritySLAHours) * time.Hour
	}
	if cfg.Engine.AllowAnonymousDemo != nil {
		e.allowAnonymousDemo = *cfg.Engine.AllowAnonymousDemo
	}
	if cfg.Engine.RistrettoNumCounter > 0 {
		if err := e.ConfigureHierarchyCache(cfg.Engine.RistrettoNumCounter, cfg.Engine.RistrettoMaxCost, cfg.Engine.RistrettoBuffer); err != nil {
			return err
		}
	}

	e.retentionRules = make(map[RetentionCategory]int, len(cfg.Retention))
	for _, r := range cfg.Retention {
		e.retentionRules[r.Category] = r.MaxAgeDays
	}

	now := time.Now()
	for _, o := range cfg.Organizations {
		if o.ID == "" {
			o.ID = NewID()
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		o.UpdatedAt = now
		if err := e.store.PutOrganization(ctx, o); err != nil {
			return fmt.Errorf("seed organization %s: %w", o.ID, err)
		}
		e.invalidateHierarchy(o.ID)
	}
	for _, p := range cfg.Products {
		if p.ID == "" {
			p.ID = NewID()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		if err := e.store.PutProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	return nil
}

// SweepRetention tombstones live contacts whose category rule has lapsed,
// measured against UpdatedAt. Each tombstone goes through SoftDelete so the
// usual policy gates and audit trail apply. Returns the ids swept.
func (e *Engine) SweepRetention(ctx context.Context, rc RoleContext, now time.Time) ([]string, error) {
	swept := make([]string, 0)
	for category, maxAgeDays := range e.retentionRules {
		if maxAgeDays <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -maxAgeDays)
		contacts, err := e.store.ListContactsByRetentionCategory(ctx, category)
		if err != nil {
			return swept, err
		}
		for _, c := range contacts {
			if c.UpdatedAt.After(cutoff) {
				continue
			}
			if err := e.SoftDelete(ctx, rc, EntityContact, c.ID); err != nil {
				return swept, err
			}
			swept = append(swept, c.ID)
		}
	}
	if len(swept) > 0 {
		e.logger.Info("retention sweep complete", "tombstoned", len(swept))
	}
	return swept, nil
}

// Binary protocol encoding/decoding
const (
	binaryMagic   = 0x5247 // "RG"
	binaryVersion = 1
)

func encodeBinaryConfig(cfg *Config, w io.Writer) error {
	buf := &bytes.Buffer{}

	// Header: magic(2) + version(2) + config_version(2)
	binary.Write(buf, binary.LittleEndian, uint16(binaryMagic))
	binary.Write(buf, binary.LittleEndian, uint16(binaryVersion))
	binary.Write(buf, binary.LittleEndian, cfg.Version)

	// Sections carry a type tag and a length prefix.
	writeSection(buf, 0x01, func(b *bytes.Buffer) { encodeEngineConfig(b, &cfg.Engine) })
	writeSection(buf, 0x02, func(b *bytes.Buffer) { encodeRetention(b, cfg.Retention) })
	writeSection(buf, 0x03, func(b *bytes.Buffer) { encodeOrganizations(b, cfg.Organizations) })
	writeSection(buf, 0x04, func(b *bytes.Buffer) { encodeProducts(b, cfg.Products) })

	_, err := w.Write(buf.Bytes())
	return err
}

func decodeBinaryConfig(r io.Reader) (*Config, error) {
	cfg := &Config{}

	var magic, ver, cfgVer uint16
	binary.Read(r, binary.LittleEndian, &magic)
	binary.Read(r, binary.LittleEndian, &ver)
	binary.Read(r, binary.LittleEndian, &cfgVer)

	if magic != binaryMagic {
		return nil, fmt.Errorf("invalid magic: %x", magic)
	}
	if ver != binaryVersion {
		return nil, fmt.Errorf("unsupported version: %d", ver)
	}
	cfg.Version = cfgVer

	for {
		var tag uint8
		if err := binary.Read(r, binary.LittleEndian, &tag); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		var size uint32
		binary.Read(r, binary.LittleEndian, &size)
		data := make([]byte, size)
		io.ReadFull(r, data)

		switch tag {
		case 0x01:
			cfg.Engine = decodeEngineConfig(data)
		case 0x02:
			cfg.Retention = decodeRetention(data)
		case 0x03:
			cfg.Organizations = decodeOrganizations(data)
		case 0x04:
			cfg.Products = decodeProducts(data)
		}
	}

	return cfg, nil
}

func writeSection(buf *bytes.Buffer, tag uint8, fn func(*bytes.Buffer)) {
	tmp := &bytes.Buffer{}
	fn(tmp)
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, uint32(tmp.Len()))
	buf.Write(tmp.Bytes())
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	var l uint16
	binary.Read(r, binary.LittleEndian, &l)
	b := make([]byte, l)
	r.Read(b)
	return string(b)
}

func encodeEngineConfig(buf *bytes.Buffer, cfg *EngineConfig) {
	binary.Write(buf, binary.LittleEndian, cfg.HierarchyCacheTTL)
	binary.Write(buf, binary.LittleEndian, cfg.AuthoritySLAHours)
	var demo byte = 0xFF // unset
	if cfg.AllowAnonymousDemo != nil {
		demo = map[bool]byte{true: 1, false: 0}[*cfg.AllowAnonymousDemo]
	}
	buf.WriteByte(demo)
	binary.Write(buf, binary.LittleEndian, cfg.RistrettoNumCounter)
	binary.Write(buf, binary.LittleEndian, cfg.RistrettoMaxCost)
	binary.Write(buf, binary.LittleEndian, cfg.RistrettoBuffer)
}

func decodeEngineConfig(data []byte) EngineConfig {
	r := bytes.NewReader(data)
	cfg := EngineConfig{}
	binary.Read(r, binary.LittleEndian, &cfg.HierarchyCacheTTL)
	binary.Read(r, binary.LittleEndian, &cfg.AuthoritySLAHours)
	demo, _ := r.ReadByte()
	if demo != 0xFF {
		v := demo == 1
		cfg.AllowAnonymousDemo = &v
	}
	binary.Read(r, binary.LittleEndian, &cfg.RistrettoNumCounter)
	binary.Read(r, binary.LittleEndian, &cfg.RistrettoMaxCost)
	binary.Read(r, binary.LittleEndian, &cfg.RistrettoBuffer)
	return cfg
}

func encodeRetention(buf *bytes.Buffer, rules []RetentionRule) {
	binary.Write(buf, binary.LittleEndian, uint16(len(rules)))
	for _, rule := range rules {
		writeString(buf, string(rule.Category))
		binary.Write(buf, binary.LittleEndian, int32(rule.MaxAgeDays))
	}
}

func decodeRetention(data []byte) []RetentionRule {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	rules := make([]RetentionRule, count)
	for i := range rules {
		rules[i].Category = RetentionCategory(readString(r))
		var days int32
		binary.Read(r, binary.LittleEndian, &days)
		rules[i].MaxAgeDays = int(days)
	}
	return rules
}

func encodeOrganizations(buf *bytes.Buffer, orgs []*Organization) {
	binary.Write(buf, binary.LittleEndian, uint16(len(orgs)))
	for _, o := range orgs {
		writeString(buf, o.ID)
		writeString(buf, o.Name)
		buf.WriteByte(map[bool]byte{true: 1, false: 0}[o.IsPrincipal])
		buf.WriteByte(map[bool]byte{true: 1, false: 0}[o.IsDistributor])
		writeString(buf, o.DistributorID)
	}
}

func decodeOrganizations(data []byte) []*Organization {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	orgs := make([]*Organization, count)
	for i := range orgs {
		o := &Organization{}
		o.ID = readString(r)
		o.Name = readString(r)
		isP, _ := r.ReadByte()
		o.IsPrincipal = isP == 1
		isD, _ := r.ReadByte()
		o.IsDistributor = isD == 1
		o.DistributorID = readString(r)
		orgs[i] = o
	}
	return orgs
}

func encodeProducts(buf *bytes.Buffer, products []*Product) {
	binary.Write(buf, binary.LittleEndian, uint16(len(products)))
	for _, p := range products {
		writeString(buf, p.ID)
		writeString(buf, p.SKU)
		writeString(buf, p.Name)
		writeString(buf, string(p.Category))
		buf.WriteByte(map[bool]byte{true: 1, false: 0}[p.IsActive])
		binary.Write(buf, binary.LittleEndian, p.ListPrice)
	}
}

func decodeProducts(data []byte) []*Product {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	products := make([]*Product, count)
	for i := range products {
		p := &Product{}
		p.ID = readString(r)
		p.SKU = readString(r)
		p.Name = readString(r)
		p.Category = ProductCategory(readString(r))
		act, _ := r.ReadByte()
		p.IsActive = act == 1
		binary.Read(r, binary.LittleEndian, &p.ListPrice)
		products[i] = p
	}
	return products
}
