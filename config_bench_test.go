package rowguard

import (
	"fmt"
	"testing"

	"gopkg.in/yaml.v3"
)

// Generate a config with N organizations and products.
func generateBenchConfig(numOrgs, numProducts int) *Config {
	b := NewConfigBuilder().
		Version(1).
		EngineSettings(func(ec *EngineConfig) {
			ec.HierarchyCacheTTL = 2500
			ec.AuthoritySLAHours = 72
		}).
		Retain(RetentionStandard, 365).
		Retain(RetentionShortLived, 30).
		AddDistributor("org-dist", "Bench Distribution")

	for i := 0; i < numOrgs; i++ {
		b.AddPrincipal(fmt.Sprintf("org-%d", i), fmt.Sprintf("Principal %d", i), "org-dist")
	}
	for i := 0; i < numProducts; i++ {
		b.AddProduct(NewProductBuilder(fmt.Sprintf("prod-%d", i), fmt.Sprintf("SKU-%03d", i), fmt.Sprintf("Product %d", i)).
			Category(CategoryBeverage).ListPrice(float64(i) + 0.5).Build())
	}
	return b.Build()
}

func BenchmarkDSLParse(b *testing.B) {
	cfg := generateBenchConfig(10, 5)
	data, _ := NewDSLEncoder().Encode(cfg)

	parser := NewDSLParser()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = parser.Parse(data)
	}
}

func BenchmarkDSLEncode(b *testing.B) {
	cfg := generateBenchConfig(10, 5)
	encoder := NewDSLEncoder()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = encoder.Encode(cfg)
	}
}

func BenchmarkBinaryEncode(b *testing.B) {
	cfg := generateBenchConfig(10, 5)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = EncodeBinaryConfig(cfg)
	}
}

func BenchmarkBinaryDecode(b *testing.B) {
	cfg := generateBenchConfig(10, 5)
	data, _ := EncodeBinaryConfig(cfg)
	loader := NewConfigLoader()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = loader.LoadBinary(data)
	}
}

func BenchmarkYAMLEncode(b *testing.B) {
	cfg := generateBenchConfig(10, 5)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = yaml.Marshal(cfg)
	}
}

func BenchmarkYAMLDecode(b *testing.B) {
	cfg := generateBenchConfig(10, 5)
	data, _ := yaml.Marshal(cfg)
	loader := NewConfigLoader()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = loader.LoadYAML(data)
	}
}

func BenchmarkJSONEncode(b *testing.B) {
	cfg := generateBenchConfig(10, 5)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = cfg.ToJSON()
	}
}

func BenchmarkJSONDecode(b *testing.B) {
	cfg := generateBenchConfig(10, 5)
	data, _ := cfg.ToJSON()
	loader := NewConfigLoader()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = loader.LoadJSON(data)
	}
}

func BenchmarkBinaryEncodeLarge(b *testing.B) {
	cfg := generateBenchConfig(100, 50)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = EncodeBinaryConfig(cfg)
	}
}

func BenchmarkBinaryDecodeLarge(b *testing.B) {
	cfg := generateBenchConfig(100, 50)
	data, _ := EncodeBinaryConfig(cfg)
	loader := NewConfigLoader()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = loader.LoadBinary(data)
	}
}

// Size comparison test
func TestSizeComparison(t *testing.T) {
	cfg := generateBenchConfig(100, 50)

	binaryData, _ := EncodeBinaryConfig(cfg)
	yamlData, _ := yaml.Marshal(cfg)
	jsonData, _ := cfg.ToJSON()
	dslData, _ := NewDSLEncoder().Encode(cfg)

	t.Logf("Size Comparison (100 organizations, 50 products):")
	t.Logf("  Binary: %d bytes (100%%)", len(binaryData))
	t.Logf("  DSL:    %d bytes (%.0f%%)", len(dslData), float64(len(dslData))/float64(len(binaryData))*100)
	t.Logf("  YAML:   %d bytes (%.0f%%)", len(yamlData), float64(len(yamlData))/float64(len(binaryData))*100)
	t.Logf("  JSON:   %d bytes (%.0f%%)", len(jsonData), float64(len(jsonData))/float64(len(binaryData))*100)
}
