package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/maqua/member-lookup/pkg/yonbip"
)

// Config holds the full application configuration.
type Config struct {
	CRM    CRMConfig    `yaml:"crm" mapstructure:"crm"`
	Lookup LookupConfig `yaml:"lookup" mapstructure:"lookup"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// CRMConfig holds the CRM gateway credentials and endpoint paths.
type CRMConfig struct {
	AppKey     string `yaml:"app_key" mapstructure:"app_key"`
	AppSecret  string `yaml:"app_secret" mapstructure:"app_secret"`
	TenantID   string `yaml:"tenant_id" mapstructure:"tenant_id"`
	TokenURL   string `yaml:"token_url" mapstructure:"token_url"`
	TokenPath  string `yaml:"token_path" mapstructure:"token_path"`
	GatewayURL string `yaml:"gateway_url" mapstructure:"gateway_url"`

	FollowupListPath string `yaml:"followup_list_path" mapstructure:"followup_list_path"`
	FollowupField    string `yaml:"followup_field" mapstructure:"followup_field"`
	FollowupOperator string `yaml:"followup_operator" mapstructure:"followup_operator"`

	TaskListPath string `yaml:"task_list_path" mapstructure:"task_list_path"`
	TaskField    string `yaml:"task_field" mapstructure:"task_field"`
	TaskOperator string `yaml:"task_operator" mapstructure:"task_operator"`

	CustomerDetailPath string `yaml:"customer_detail_path" mapstructure:"customer_detail_path"`
	AddressListPath    string `yaml:"address_list_path" mapstructure:"address_list_path"`

	OpportunityListPath   string `yaml:"opportunity_list_path" mapstructure:"opportunity_list_path"`
	OpportunityDetailPath string `yaml:"opportunity_detail_path" mapstructure:"opportunity_detail_path"`
	OpportunityRepeatPath string `yaml:"opportunity_repeat_path" mapstructure:"opportunity_repeat_path"`
	OpportunityField      string `yaml:"opportunity_field" mapstructure:"opportunity_field"`
	OpportunityOperator   string `yaml:"opportunity_operator" mapstructure:"opportunity_operator"`
	OpportunityDetailURL  string `yaml:"opportunity_detail_url" mapstructure:"opportunity_detail_url"`

	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	MaxAttempts  int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// LookupConfig tunes the lookup pipeline.
type LookupConfig struct {
	PageSize     int    `yaml:"page_size" mapstructure:"page_size"`
	TaskPageSize int    `yaml:"task_page_size" mapstructure:"task_page_size"`
	OwnerKeyword string `yaml:"owner_keyword" mapstructure:"owner_keyword"`
	TaskGapDays  int    `yaml:"task_gap_days" mapstructure:"task_gap_days"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MEMBER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("crm.token_url", "https://c2.yonyoucloud.com/iuap-api-auth")
	v.SetDefault("crm.token_path", "/open-auth/selfAppAuth/base/v1/getAccessToken")
	v.SetDefault("crm.gateway_url", "https://c2.yonyoucloud.com/iuap-api-gateway")
	v.SetDefault("crm.followup_list_path", "/yonbip/crm/followup/list")
	v.SetDefault("crm.followup_field", "customer.code")
	v.SetDefault("crm.followup_operator", "eq")
	v.SetDefault("crm.task_list_path", "/yonbip/crm/task/list")
	v.SetDefault("crm.task_field", "customer.name")
	v.SetDefault("crm.task_operator", "like")
	v.SetDefault("crm.customer_detail_path", "/yonbip/crm/customer/getbyid")
	v.SetDefault("crm.address_list_path", "/yonbip/digitalModel/merchant/listaddressbycodelist")
	v.SetDefault("crm.opportunity_list_path", "/yonbip/crm/oppt/bill/list")
	v.SetDefault("crm.opportunity_detail_path", "/yonbip/crm/oppt/getbyid")
	v.SetDefault("crm.opportunity_repeat_path", "/yonbip/crm/bill/opptcheckrepeat")
	v.SetDefault("crm.opportunity_field", "customer.code")
	v.SetDefault("crm.opportunity_operator", "eq")
	v.SetDefault("crm.max_attempts", 1)
	v.SetDefault("lookup.page_size", 20)
	v.SetDefault("lookup.task_page_size", 50)
	v.SetDefault("lookup.owner_keyword", "客服003")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// ClientConfig maps the CRM section onto the gateway client configuration.
func (c CRMConfig) ClientConfig() yonbip.Config {
	return yonbip.Config{
		GatewayURL:               c.GatewayURL,
		FollowupListPath:         c.FollowupListPath,
		FollowupCustomerField:    c.FollowupField,
		FollowupSearchOperator:   c.FollowupOperator,
		TaskListPath:             c.TaskListPath,
		TaskCustomerField:        c.TaskField,
		TaskCustomerOperator:     c.TaskOperator,
		CustomerDetailPath:       c.CustomerDetailPath,
		AddressListPath:          c.AddressListPath,
		OpportunityListPath:      c.OpportunityListPath,
		OpportunityDetailPath:    c.OpportunityDetailPath,
		OpportunityRepeatPath:    c.OpportunityRepeatPath,
		OpportunityCustomerField: c.OpportunityField,
		OpportunityCustomerOp:    c.OpportunityOperator,
	}
}

// TokenConfig maps the CRM section onto the token service configuration.
func (c CRMConfig) TokenConfig() yonbip.TokenConfig {
	return yonbip.TokenConfig{
		AppKey:    c.AppKey,
		AppSecret: c.AppSecret,
		TokenURL:  c.TokenURL,
		TokenPath: c.TokenPath,
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
