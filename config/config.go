package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ocrorder/model"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "./ocrorder_config.json"

type BarcodeConfig struct {
	// Sentinels are cell texts that name a row label, never a product.
	Sentinels []string `json:"sentinels"`
	// AllowList values always validate.
	AllowList []string `json:"allowList"`
	MinLength int      `json:"minLength"`
	MaxLength int      `json:"maxLength"`
}

type HeaderConfig struct {
	Keywords  []string `json:"keywords"`
	ScanRows  int      `json:"scanRows"`
	Threshold int      `json:"threshold"`
	// SampleRows bounds the data-shape inference of the barcode column.
	SampleRows int `json:"sampleRows"`
}

type UnitConfig struct {
	Valid     []string `json:"valid"`
	Case      []string `json:"case"`
	Pack      []string `json:"pack"`
	Canonical string   `json:"canonical"`
}

type PathConfig struct {
	InputFolder   string `json:"inputFolder"`
	OutputFolder  string `json:"outputFolder"`
	TemplateFile  string `json:"templateFile"`
	DatabaseFile  string `json:"databaseFile"`
	OverridesFile string `json:"overridesFile"`
	LogFile       string `json:"logFile"`
}

type PerformanceConfig struct {
	MaxWorkers   int  `json:"maxWorkers"`
	BatchSize    int  `json:"batchSize"`
	SkipExisting bool `json:"skipExisting"`
}

type FileConfig struct {
	ImageExtensions []string `json:"imageExtensions"`
	MaxImageSizeMB  int      `json:"maxImageSizeMB"`
}

// Config is built once at startup and passed by value to every component.
type Config struct {
	Barcode         BarcodeConfig           `json:"barcode"`
	Header          HeaderConfig            `json:"header"`
	Columns         map[string][]string     `json:"columns"`
	SubtotalMarkers []string                `json:"subtotalMarkers"`
	Units           UnitConfig              `json:"units"`
	CasePackSizes   []int                   `json:"casePackSizes"`
	Overrides       []model.BarcodeOverride `json:"overrides"`
	Paths           PathConfig              `json:"paths"`
	Performance     PerformanceConfig       `json:"performance"`
	Files           FileConfig              `json:"files"`
	Addr            string                  `json:"addr"`
}

// Default returns the built-in configuration for the Yinbao purchase template.
func Default() Config {
	return Config{
		Barcode: BarcodeConfig{
			Sentinels: []string{"仓库", "仓库全名"},
			AllowList: []string{"5321545613"},
			MinLength: 8,
			MaxLength: 13,
		},
		Header: HeaderConfig{
			Keywords: []string{
				"行号", "条形码", "条码", "商品名称", "品名", "名称", "规格",
				"单价", "数量", "金额", "单位", "barcode",
			},
			ScanRows:   10,
			Threshold:  5,
			SampleRows: 20,
		},
		Columns: map[string][]string{
			model.FieldBarcode: {
				"条码", "条形码", "商品条码", "商品条形码", "商品编码", "商品编号",
				"基本条码", "条码（必填）", "barcode", "编码",
			},
			model.FieldName: {
				"商品名称", "名称", "品名", "商品全名", "商品名", "商品或服务名称",
				"品项名", "产品名称", "货物名称", "商品",
			},
			model.FieldSpecification: {"规格", "规格型号", "商品规格", "包装规格", "型号", "包装"},
			model.FieldQuantity:      {"数量", "采购数量", "购买数量", "订单数量", "数量（必填）"},
			model.FieldUnit:          {"单位", "采购单位", "计量单位", "单位（必填）"},
			model.FieldPrice:         {"单价", "采购单价", "价格", "销售价", "进货价", "单价（必填）"},
			model.FieldAmount:        {"金额", "订单金额", "总金额", "总价金额", "小计（元）"},
			model.FieldGiftQuantity:  {"赠送量", "赠品数量", "赠送数量", "赠品"},
		},
		SubtotalMarkers: []string{"小计", "合计"},
		Units: UnitConfig{
			Valid:     []string{"件", "箱", "包", "提", "盒", "瓶", "个", "支", "袋", "副", "桶", "罐", "L", "l", "升"},
			Case:      []string{"件", "箱"},
			Pack:      []string{"提", "盒"},
			Canonical: "瓶",
		},
		CasePackSizes: []int{12, 15, 24, 30},
		Overrides: []model.BarcodeOverride{
			{
				Barcode:     "6925019900087",
				Multiplier:  10,
				TargetUnit:  "瓶",
				Price:       model.OverridePrice{Kind: model.PriceDivided},
				Description: "数量*10，单位转换为瓶",
			},
		},
		Paths: PathConfig{
			InputFolder:   "data/input",
			OutputFolder:  "data/output",
			TemplateFile:  "templates/银豹-采购单模板.xlsx",
			DatabaseFile:  "./ocrorder.db",
			OverridesFile: "data/special_barcodes.csv",
			LogFile:       "logs/ocrorder.log",
		},
		Performance: PerformanceConfig{
			MaxWorkers:   4,
			BatchSize:    5,
			SkipExisting: true,
		},
		Files: FileConfig{
			ImageExtensions: []string{".jpg", ".jpeg", ".png", ".bmp"},
			MaxImageSizeMB:  4,
		},
		Addr: ":8080",
	}
}

// Load reads the JSON file at path over the defaults, then applies
// environment overrides (.env is honoured). A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OCRORDER_DB_PATH"); v != "" {
		c.Paths.DatabaseFile = v
	}
	if v := os.Getenv("OCRORDER_INPUT_DIR"); v != "" {
		c.Paths.InputFolder = v
	}
	if v := os.Getenv("OCRORDER_OUTPUT_DIR"); v != "" {
		c.Paths.OutputFolder = v
	}
	if v := os.Getenv("OCRORDER_TEMPLATE"); v != "" {
		c.Paths.TemplateFile = v
	}
	if v := os.Getenv("OCRORDER_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("OCRORDER_MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: OCRORDER_MAX_WORKERS: %w", err)
		}
		c.Performance.MaxWorkers = n
	}
	if v := os.Getenv("OCRORDER_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: OCRORDER_BATCH_SIZE: %w", err)
		}
		c.Performance.BatchSize = n
	}
	return nil
}

// Validate checks the values the pipeline divides or loops by.
func (c Config) Validate() error {
	if c.Performance.MaxWorkers <= 0 {
		return fmt.Errorf("config: maxWorkers must be positive, got %d", c.Performance.MaxWorkers)
	}
	if c.Performance.BatchSize <= 0 {
		return fmt.Errorf("config: batchSize must be positive, got %d", c.Performance.BatchSize)
	}
	if c.Header.ScanRows <= 0 || c.Header.Threshold <= 0 {
		return fmt.Errorf("config: header scanRows and threshold must be positive")
	}
	if c.Barcode.MinLength <= 0 || c.Barcode.MaxLength < c.Barcode.MinLength {
		return fmt.Errorf("config: invalid barcode length range [%d,%d]", c.Barcode.MinLength, c.Barcode.MaxLength)
	}
	if len(c.Columns[model.FieldBarcode]) == 0 {
		return fmt.Errorf("config: no synonyms for barcode column")
	}
	for _, o := range c.Overrides {
		if o.Multiplier < 1 {
			return fmt.Errorf("config: override %s: multiplier must be >= 1", o.Barcode)
		}
		if o.TargetUnit == "" {
			return fmt.Errorf("config: override %s: target unit is empty", o.Barcode)
		}
	}
	return nil
}
