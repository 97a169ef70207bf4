package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `
Environment = "test"
ListenAddress = ":9090"

[Chain]
RPCEndpoint = "https://rpc.example.org"
ChainID = 56

[Contracts]
Vault = "0x1000000000000000000000000000000000000001"
Owner = "0x1000000000000000000000000000000000000002"
Manager = "0x1000000000000000000000000000000000000003"
Strategist = "0x1000000000000000000000000000000000000004"
Treasury = "0x1000000000000000000000000000000000000005"
Want = "0x2000000000000000000000000000000000000001"
Output = "0x2000000000000000000000000000000000000002"
Native = "0x2000000000000000000000000000000000000003"
Farm = "0x3000000000000000000000000000000000000001"
Router = "0x3000000000000000000000000000000000000002"
SecondaryPair = "0x3000000000000000000000000000000000000003"
PrimaryPool = 1
SecondaryPool = 2
PendingRewardMethod = "pendingCake"

[Routes]
OutputToNative = ["0x2000000000000000000000000000000000000002", "0x2000000000000000000000000000000000000003"]
OutputToLP0 = ["0x2000000000000000000000000000000000000002", "0x4000000000000000000000000000000000000001"]
OutputToLP1 = ["0x2000000000000000000000000000000000000002", "0x4000000000000000000000000000000000000002"]
NativeToSecondary0 = ["0x2000000000000000000000000000000000000003", "0x5000000000000000000000000000000000000001"]
NativeToSecondary1 = ["0x2000000000000000000000000000000000000003", "0x5000000000000000000000000000000000000002"]

[Fees]
CallFee = 111
StrategistFee = 112
ProtocolFee = 777

[Harvest]
Interval = "15m"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategyd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HarvestInterval() != 15*time.Minute {
		t.Fatalf("unexpected interval: %s", cfg.HarvestInterval())
	}
	if cfg.JournalPath != filepath.Join("./compounder-data", "journal.db") {
		t.Fatalf("unexpected journal path: %s", cfg.JournalPath)
	}
	if cfg.Chain.OperatorKeyEnv != "STRATEGYD_OPERATOR_KEY" {
		t.Fatalf("unexpected key env: %s", cfg.Chain.OperatorKeyEnv)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
	if cfg.Contracts.PendingRewardMethod != "pendingCake" {
		t.Fatalf("unexpected pending method: %s", cfg.Contracts.PendingRewardMethod)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	body := validConfig + "\nLegacyField = true\n"
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRejectsMissingEndpoint(t *testing.T) {
	body := strings.Replace(validConfig, `RPCEndpoint = "https://rpc.example.org"`, `RPCEndpoint = ""`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "RPCEndpoint") {
		t.Fatalf("expected endpoint error, got %v", err)
	}
}

func TestLoadRejectsBadAddress(t *testing.T) {
	body := strings.Replace(validConfig, "0x3000000000000000000000000000000000000002", "not-an-address", 1)
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "invalid address") {
		t.Fatalf("expected address error, got %v", err)
	}
}

func TestLoadRejectsShortRoute(t *testing.T) {
	body := strings.Replace(validConfig,
		`OutputToNative = ["0x2000000000000000000000000000000000000002", "0x2000000000000000000000000000000000000003"]`,
		`OutputToNative = ["0x2000000000000000000000000000000000000002"]`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "two hops") {
		t.Fatalf("expected short route error, got %v", err)
	}
}

func TestValidateAllowsEmptyComponentRoutes(t *testing.T) {
	body := strings.Replace(validConfig, `OutputToLP0 = ["0x2000000000000000000000000000000000000002", "0x4000000000000000000000000000000000000001"]`, `OutputToLP0 = []`, 1)
	if _, err := Load(writeConfig(t, body)); err != nil {
		t.Fatalf("expected empty component route accepted, got %v", err)
	}
}

func TestValidateAllowsEmptySecondaryRoutes(t *testing.T) {
	body := strings.Replace(validConfig, `NativeToSecondary0 = ["0x2000000000000000000000000000000000000003", "0x5000000000000000000000000000000000000001"]`, `NativeToSecondary0 = []`, 1)
	body = strings.Replace(body, `NativeToSecondary1 = ["0x2000000000000000000000000000000000000003", "0x5000000000000000000000000000000000000002"]`, `NativeToSecondary1 = []`, 1)
	if _, err := Load(writeConfig(t, body)); err != nil {
		t.Fatalf("expected empty secondary routes accepted, got %v", err)
	}
}

func TestLoadRejectsSubMinuteInterval(t *testing.T) {
	body := strings.Replace(validConfig, `Interval = "15m"`, `Interval = "10s"`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "Interval") {
		t.Fatalf("expected interval error, got %v", err)
	}
}
