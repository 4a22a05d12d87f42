package main

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/dropworks/pooldrop/service/app"
	"github.com/dropworks/pooldrop/service/chain"
	"github.com/dropworks/pooldrop/service/common"
	"github.com/dropworks/pooldrop/service/config"
	svcerrors "github.com/dropworks/pooldrop/service/errors"
	"github.com/dropworks/pooldrop/service/http"
	"github.com/dropworks/pooldrop/service/transactions"
	"github.com/dropworks/pooldrop/service/wallet"
)

const testCurrency = "RINKEBY:0x41102b3e1ebA132d37e5F8571C6b5AAd76d99b65"

func cleanTestDatabase(cfg *config.Config, db *gorm.DB) {
	// Only run this if database DSN contains "test"
	if strings.Contains(strings.ToLower(cfg.DatabaseDSN), "test") {
		// Hard delete so record ids can be reused by the next test
		session := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped()
		session.Delete(&app.PoolDrop{})
		session.Delete(&transactions.SigningRequest{})
	}
}

func getTestCfg() *config.Config {
	cfg, err := config.ParseConfig(&config.ConfigOptions{EnvFilePath: ".env.test"})
	if err != nil {
		panic(err)
	}

	if !strings.Contains(strings.ToLower(cfg.DatabaseDSN), "test") {
		cfg.DatabaseDSN = "test.db"
		cfg.DatabaseType = "sqlite"
	}

	return cfg
}

// stubWallet resolves tokens of the form "token-<n>" to user "user-<n>"
// holding a deterministic test address.
type stubWallet struct {
	links   int
	signErr error
}

func testUserAddress(i int) string {
	return fmt.Sprintf("0x%040x", i+1)
}

func (w *stubWallet) SignIn(ctx context.Context, token string) (*wallet.Profile, error) {
	var i int
	if _, err := fmt.Sscanf(token, "token-%d", &i); err != nil {
		return nil, svcerrors.ErrNotAuthorized
	}
	return &wallet.Profile{
		UserID:      fmt.Sprintf("user-%d", i),
		DisplayName: fmt.Sprintf("User %d", i),
		Addresses:   map[string]string{testCurrency: testUserAddress(i)},
	}, nil
}

func (w *stubWallet) CreateLink(ctx context.Context, token string, req wallet.LinkRequest) (string, error) {
	w.links++
	return fmt.Sprintf("link-%d", w.links), nil
}

func (w *stubWallet) RequestSignature(ctx context.Context, userID string, calls []chain.CallRequest) (string, error) {
	if w.signErr != nil {
		return "", w.signErr
	}
	return "signing-request-1", nil
}

// stubChain answers a fixed token precision and builds placeholder calls with
// sequential nonces.
type stubChain struct {
	decimals int32
}

func (c *stubChain) DecimalsOf(ctx context.Context, network string, token common.EthAddress) (int32, error) {
	return c.decimals, nil
}

func (c *stubChain) BuildPoolDrop(ctx context.Context, req chain.BuildRequest) ([]chain.CallRequest, error) {
	if len(req.Recipients) == 0 {
		return nil, svcerrors.MissingField("recipients")
	}
	calls := make([]chain.CallRequest, 2)
	for i := range calls {
		calls[i] = chain.CallRequest{
			Currency: req.Currency,
			From:     req.From.String(),
			Amount:   "0",
			Nonce:    uint64(i),
		}
	}
	return calls, nil
}

func getTestApp(cfg *config.Config) (*app.App, func()) {
	db, err := common.NewGormDB(cfg)
	if err != nil {
		panic(err)
	}

	cleanTestDatabase(cfg, db)

	// Migrate app database
	if err := app.Migrate(db); err != nil {
		panic(err)
	}
	if err := transactions.Migrate(db); err != nil {
		panic(err)
	}

	store := app.NewGormStore(db)
	a := app.New(cfg, store, &stubWallet{}, &stubChain{decimals: 6})

	clean := func() {
		cleanTestDatabase(cfg, db)
		common.CloseGormDB(db)
	}

	return a, clean
}

func getTestServer(cfg *config.Config) (*http.Server, func()) {
	a, cleanupApp := getTestApp(cfg)
	clean := func() {
		cleanupApp()
	}
	return http.NewServer(cfg, nil, a), clean
}

func AssertEqual(t *testing.T, a interface{}, b interface{}) {
	if a == b {
		return
	}
	t.Errorf("Received %v (type %v), expected %v (type %v)", a, reflect.TypeOf(a), b, reflect.TypeOf(b))
}

func AssertNotEqual(t *testing.T, a interface{}, b interface{}) {
	if a != b {
		return
	}
	t.Error("Did not expect to equal")
}
