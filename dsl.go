package rowguard

import (
	"fmt"
	"strconv"
	"strings"
)

// DSL Syntax:
// version <n>
// engine <key>=<value>...
// retention <category> <max_age_days>
// org <id> <name> [principal] [distributor] [via:<distributor_id>]
// product <id> <sku> <name> <category> <list_price> [inactive]

type DSLParser struct {
	line int
}

func NewDSLParser() *DSLParser {
	return &DSLParser{}
}

type DSLEncoder struct {
	buf []byte
}

func NewDSLEncoder() *DSLEncoder {
	return &DSLEncoder{buf: make([]byte, 0, 4096)}
}

func (e *DSLEncoder) Encode(cfg *Config) ([]byte, error) {
	e.buf = e.buf[:0]
	var tmp [24]byte

	if cfg.Version > 0 {
		e.buf = append(e.buf, "version "...)
		n := strconv.AppendInt(tmp[:0], int64(cfg.Version), 10)
		e.buf = append(e.buf, n...)
		e.buf = append(e.buf, '\n')
	}

	ec := &cfg.Engine
	if ec.HierarchyCacheTTL > 0 || ec.AuthoritySLAHours > 0 || ec.AllowAnonymousDemo != nil || ec.RistrettoNumCounter > 0 {
		e.buf = append(e.buf, "engine"...)
		if ec.HierarchyCacheTTL > 0 {
			e.buf = append(e.buf, " cache_ttl="...)
			n := strconv.AppendInt(tmp[:0], ec.HierarchyCacheTTL, 10)
			e.buf = append(e.buf, n...)
		}
		if ec.AuthoritySLAHours > 0 {
			e.buf = append(e.buf, " sla_hours="...)
			n := strconv.AppendInt(tmp[:0], ec.AuthoritySLAHours, 10)
			e.buf = append(e.buf, n...)
		}
		if ec.AllowAnonymousDemo != nil {
			if *ec.AllowAnonymousDemo {
				e.buf = append(e.buf, " demo=on"...)
			} else {
				e.buf = append(e.buf, " demo=off"...)
			}
		}
		if ec.RistrettoNumCounter > 0 {
			e.buf = append(e.buf, " counters="...)
			n := strconv.AppendInt(tmp[:0], ec.RistrettoNumCounter, 10)
			e.buf = append(e.buf, n...)
		}
		if ec.RistrettoMaxCost > 0 {
			e.buf = append(e.buf, " max_cost="...)
			n := strconv.AppendInt(tmp[:0], ec.RistrettoMaxCost, 10)
			e.buf = append(e.buf, n...)
		}
		if ec.RistrettoBuffer > 0 {
			e.buf = append(e.buf, " buffer="...)
			n := strconv.AppendInt(tmp[:0], ec.RistrettoBuffer, 10)
			e.buf = append(e.buf, n...)
		}
		e.buf = append(e.buf, '\n')
	}

	for _, r := range cfg.Retention {
		e.buf = append(e.buf, "retention "...)
		e.buf = append(e.buf, r.Category...)
		e.buf = append(e.buf, ' ')
		n := strconv.AppendInt(tmp[:0], int64(r.MaxAgeDays), 10)
		e.buf = append(e.buf, n...)
		e.buf = append(e.buf, '\n')
	}

	for _, o := range cfg.Organizations {
		e.buf = append(e.buf, "org "...)
		e.buf = append(e.buf, o.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = appendQuoted(e.buf, o.Name)
		if o.IsPrincipal {
			e.buf = append(e.buf, " principal"...)
		}
		if o.IsDistributor {
			e.buf = append(e.buf, " distributor"...)
		}
		if o.DistributorID != "" {
			e.buf = append(e.buf, " via:"...)
			e.buf = append(e.buf, o.DistributorID...)
		}
		e.buf = append(e.buf, '\n')
	}

	for _, p := range cfg.Products {
		e.buf = append(e.buf, "product "...)
		e.buf = append(e.buf, p.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, p.SKU...)
		e.buf = append(e.buf, ' ')
		e.buf = appendQuoted(e.buf, p.Name)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, p.Category...)
		e.buf = append(e.buf, ' ')
		e.buf = strconv.AppendFloat(e.buf, p.ListPrice, 'f', -1, 64)
		if !p.IsActive {
			e.buf = append(e.buf, " inactive"...)
		}
		e.buf = append(e.buf, '\n')
	}

	return e.buf, nil
}

func appendQuoted(buf []byte, s string) []byte {
	if strings.ContainsAny(s, " \t") {
		buf = append(buf, '"')
		buf = append(buf, s...)
		buf = append(buf, '"')
		return buf
	}
	return append(buf, s...)
}

func (p *DSLParser) Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Version:   1,
		Retention: make([]RetentionRule, 0, 4),
	}

	p.line = 0
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			p.line++
			line := data[start:i]
			start = i + 1

			for len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
				line = line[1:]
			}
			for len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t' || line[len(line)-1] == '\r') {
				line = line[:len(line)-1]
			}

			if len(line) == 0 || line[0] == '#' {
				continue
			}

			parts := splitLineBytes(line)
			if len(parts) == 0 {
				continue
			}

			switch parts[0] {
			case "version":
				if err := p.parseVersion(cfg, parts[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line, err)
				}
			case "engine":
				if err := p.parseEngine(cfg, parts[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line, err)
				}
			case "retention":
				if err := p.parseRetention(cfg, parts[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line, err)
				}
			case "org":
				if err := p.parseOrg(cfg, parts[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line, err)
				}
			case "product":
				if err := p.parseProduct(cfg, parts[1:]); err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line, err)
				}
			default:
				return nil, fmt.Errorf("line %d: unknown directive: %s", p.line, parts[0])
			}
		}
	}

	return cfg, nil
}

func splitLineBytes(line []byte) []string {
	parts := make([]string, 0, 8)
	var start int
	inQuote := false
	i := 0

	for i < len(line) {
		ch := line[i]
		if ch == '"' {
			if inQuote {
				parts = append(parts, string(line[start:i]))
				start = i + 1
				inQuote = false
			} else {
				start = i + 1
				inQuote = true
			}
		} else if (ch == ' ' || ch == '\t') && !inQuote {
			if i > start {
				parts = append(parts, string(line[start:i]))
			}
			start = i + 1
		}
		i++
	}

	if start < len(line) {
		parts = append(parts, string(line[start:]))
	}

	return parts
}

func (p *DSLParser) parseVersion(cfg *Config, parts []string) error {
	if len(parts) < 1 {
		return fmt.Errorf("version requires: <n>")
	}
	v, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return fmt.Errorf("bad version %q: %w", parts[0], err)
	}
	cfg.Version = uint16(v)
	return nil
}

func (p *DSLParser) parseEngine(cfg *Config, parts []string) error {
	for _, kv := range parts {
		idx := strings.Index(kv, "=")
		if idx == -1 {
			continue
		}
		key, val := kv[:idx], kv[idx+1:]
		switch key {
		case "cache_ttl":
			cfg.Engine.HierarchyCacheTTL, _ = strconv.ParseInt(val, 10, 64)
		case "sla_hours":
			cfg.Engine.AuthoritySLAHours, _ = strconv.ParseInt(val, 10, 64)
		case "demo":
			on := val == "on" || val == "true"
			cfg.Engine.AllowAnonymousDemo = &on
		case "counters":
			cfg.Engine.RistrettoNumCounter, _ = strconv.ParseInt(val, 10, 64)
		case "max_cost":
			cfg.Engine.RistrettoMaxCost, _ = strconv.ParseInt(val, 10, 64)
		case "buffer":
			cfg.Engine.RistrettoBuffer, _ = strconv.ParseInt(val, 10, 64)
		}
	}
	return nil
}

func (p *DSLParser) parseRetention(cfg *Config, parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("retention requires: <category> <max_age_days>")
	}
	days, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("bad max_age_days %q: %w", parts[1], err)
	}
	cfg.Retention = append(cfg.Retention, RetentionRule{
		Category:   RetentionCategory(parts[0]),
		MaxAgeDays: days,
	})
	return nil
}

func (p *DSLParser) parseOrg(cfg *Config, parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("org requires: <id> <name> [principal] [distributor] [via:<id>]")
	}
	o := &Organization{Row: Row{ID: parts[0]}, Name: parts[1]}
	for _, opt := range parts[2:] {
		switch {
		case opt == "principal":
			o.IsPrincipal = true
		case opt == "distributor":
			o.IsDistributor = true
		case strings.HasPrefix(opt, "via:"):
			o.DistributorID = opt[4:]
		default:
			return fmt.Errorf("unknown org option: %s", opt)
		}
	}
	cfg.Organizations = append(cfg.Organizations, o)
	return nil
}

func (p *DSLParser) parseProduct(cfg *Config, parts []string) error {
	if len(parts) < 5 {
		return fmt.Errorf("product requires: <id> <sku> <name> <category> <list_price> [inactive]")
	}
	price, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return fmt.Errorf("bad list_price %q: %w", parts[4], err)
	}
	prod := &Product{
		Row:       Row{ID: parts[0]},
		SKU:       parts[1],
		Name:      parts[2],
		Category:  ProductCategory(parts[3]),
		ListPrice: price,
		IsActive:  true,
	}
	for _, opt := range parts[5:] {
		switch opt {
		case "inactive":
			prod.IsActive = false
		default:
			return fmt.Errorf("unknown product option: %s", opt)
		}
	}
	cfg.Products = append(cfg.Products, prod)
	return nil
}
