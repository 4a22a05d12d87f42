package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dropworks/pooldrop/service/chain"
	"github.com/dropworks/pooldrop/service/common"
	"github.com/dropworks/pooldrop/service/config"
	svcerrors "github.com/dropworks/pooldrop/service/errors"
	"github.com/dropworks/pooldrop/service/transactions"
	"github.com/dropworks/pooldrop/service/wallet"
)

const testCurrency = "RINKEBY:0x41102b3e1ebA132d37e5F8571C6b5AAd76d99b65"

// memoryStore implements Store with the same conditional update semantics as
// the database: an update commits only if the stored version still equals the
// version the caller read.
type memoryStore struct {
	mu       sync.Mutex
	drops    map[string]*PoolDrop
	requests []*transactions.SigningRequest
}

func newMemoryStore() *memoryStore {
	return &memoryStore{drops: make(map[string]*PoolDrop)}
}

func clonePoolDrop(pd *PoolDrop) *PoolDrop {
	c := *pd
	c.Claims = append(ClaimList{}, pd.Claims...)
	c.TransactionIDs = append(common.StringList{}, pd.TransactionIDs...)
	return &c
}

func (s *memoryStore) InsertPoolDrop(pd *PoolDrop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drops[pd.ID]; ok {
		return svcerrors.ErrDuplicateID
	}
	s.drops[pd.ID] = clonePoolDrop(pd)
	return nil
}

func (s *memoryStore) GetPoolDrop(id string) (*PoolDrop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, ok := s.drops[id]
	if !ok {
		return nil, svcerrors.ErrNotFound
	}
	return clonePoolDrop(pd), nil
}

func (s *memoryStore) UpdatePoolDrop(pd *PoolDrop, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.drops[pd.ID]
	if !ok {
		return svcerrors.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return svcerrors.ErrVersionConflict
	}
	c := clonePoolDrop(pd)
	c.Version = expectedVersion + 1
	s.drops[pd.ID] = c
	pd.Version = expectedVersion + 1
	return nil
}

func (s *memoryStore) ListActivePoolDrops(creatorID, currency string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for _, pd := range s.drops {
		if pd.CreatorID != creatorID || pd.Cancelled || pd.Executed {
			continue
		}
		if currency != "" && pd.Currency != currency {
			continue
		}
		ids = append(ids, pd.ID)
	}
	return ids, nil
}

func (s *memoryStore) InsertSigningRequest(t *transactions.SigningRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.requests = append(s.requests, t)
	return nil
}

func (s *memoryStore) UpdateSigningRequest(t *transactions.SigningRequest) error {
	return nil
}

func (s *memoryStore) GetSigningRequest(id uuid.UUID) (*transactions.SigningRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.requests {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, svcerrors.ErrNotFound
}

func (s *memoryStore) LatestSigningRequest(poolDropID string) (*transactions.SigningRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].PoolDropID == poolDropID {
			return s.requests[i], nil
		}
	}
	return nil, svcerrors.ErrNotFound
}

// testWallet resolves tokens of the form "token-<n>" to user "user-<n>" with
// address testAddress(n).
type testWallet struct {
	mu      sync.Mutex
	signErr error
	links   int
}

func testToken(i int) string {
	return fmt.Sprintf("token-%d", i)
}

func (w *testWallet) SignIn(ctx context.Context, token string) (*wallet.Profile, error) {
	var i int
	if _, err := fmt.Sscanf(token, "token-%d", &i); err != nil {
		return nil, svcerrors.ErrNotAuthorized
	}
	return &wallet.Profile{
		UserID:      fmt.Sprintf("user-%d", i),
		DisplayName: fmt.Sprintf("User %d", i),
		Addresses:   map[string]string{testCurrency: testAddress(i).String()},
	}, nil
}

func (w *testWallet) CreateLink(ctx context.Context, token string, req wallet.LinkRequest) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.links++
	return fmt.Sprintf("link-%d", w.links), nil
}

func (w *testWallet) RequestSignature(ctx context.Context, userID string, calls []chain.CallRequest) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.signErr != nil {
		return "", w.signErr
	}
	return "signing-request-1", nil
}

// testChain answers a fixed decimal precision and builds placeholder calls
// with sequential nonces.
type testChain struct {
	decimals int32
}

func (c *testChain) DecimalsOf(ctx context.Context, network string, token common.EthAddress) (int32, error) {
	return c.decimals, nil
}

func (c *testChain) BuildPoolDrop(ctx context.Context, req chain.BuildRequest) ([]chain.CallRequest, error) {
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

func newTestApp() (*App, *memoryStore, *testWallet) {
	cfg := &config.Config{UpdateRetryCount: 10}
	store := newMemoryStore()
	w := &testWallet{}
	return New(cfg, store, w, &testChain{decimals: 6}), store, w
}

func insertTestPoolDrop(t *testing.T, store Store, participants int) *PoolDrop {
	t.Helper()
	pd := testPoolDrop(participants)
	pd.CreatorID = "user-0"
	pd.CreatorAddress = testAddress(0x100)
	pd.Currency = testCurrency
	if err := store.InsertPoolDrop(pd); err != nil {
		t.Fatal(err)
	}
	return pd
}

func TestCreate(t *testing.T) {
	a, _, _ := newTestApp()
	ctx := context.Background()

	params := CreateParams{
		Network:                      "RINKEBY",
		Currency:                     testCurrency,
		Symbol:                       "USDC",
		TotalAmount:                  "100",
		NumberOfParticipants:         3,
		ParticipationAmountFormatted: "33.33",
	}

	pd, err := a.Create(ctx, testToken(1), params)
	if err != nil {
		t.Fatal(err)
	}

	if pd.ID != "link-1" {
		t.Errorf("expected the link id to become the record id, got %s", pd.ID)
	}
	if pd.Version != 0 {
		t.Errorf("expected version 0, got %d", pd.Version)
	}
	if pd.CreatorID != "user-1" {
		t.Errorf("unexpected creator %s", pd.CreatorID)
	}
	if pd.ParticipationAmount.String() != "33.333333" {
		t.Errorf("expected participation amount 33.333333, got %s", pd.ParticipationAmount.String())
	}
	if pd.State() != common.PoolDropStateOpen {
		t.Errorf("expected open state, got %s", pd.State())
	}

	stored, err := a.Get(ctx, pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TotalAmount.Cmp(pd.TotalAmount) != 0 {
		t.Errorf("expected stored total %s, got %s", pd.TotalAmount.String(), stored.TotalAmount.String())
	}
}

func TestCreateValidation(t *testing.T) {
	a, _, _ := newTestApp()
	ctx := context.Background()

	valid := CreateParams{
		Network:                      "RINKEBY",
		Currency:                     testCurrency,
		Symbol:                       "USDC",
		TotalAmount:                  "100",
		NumberOfParticipants:         3,
		ParticipationAmountFormatted: "33.33",
	}

	if _, err := a.Create(ctx, "", valid); !svcerrors.IsValidation(err) {
		t.Errorf("expected a validation error for a missing token, got %v", err)
	}

	missingNetwork := valid
	missingNetwork.Network = ""
	if _, err := a.Create(ctx, testToken(1), missingNetwork); !svcerrors.IsValidation(err) {
		t.Errorf("expected a validation error for a missing network, got %v", err)
	}

	badAmount := valid
	badAmount.TotalAmount = "-5"
	if _, err := a.Create(ctx, testToken(1), badAmount); !errors.Is(err, svcerrors.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	zeroAmount := valid
	zeroAmount.TotalAmount = "0"
	if _, err := a.Create(ctx, testToken(1), zeroAmount); !errors.Is(err, svcerrors.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for a zero total, got %v", err)
	}

	zeroParticipants := valid
	zeroParticipants.NumberOfParticipants = 0
	if _, err := a.Create(ctx, testToken(1), zeroParticipants); !errors.Is(err, svcerrors.ErrInvalidParticipantCount) {
		t.Errorf("expected ErrInvalidParticipantCount, got %v", err)
	}

	if _, err := a.Create(ctx, "bogus", valid); !errors.Is(err, svcerrors.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for an unknown token, got %v", err)
	}
}

func TestClaim(t *testing.T) {
	a, store, _ := newTestApp()
	ctx := context.Background()
	pd := insertTestPoolDrop(t, store, 3)

	claimed, err := a.Claim(ctx, testToken(1), pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed.Claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(claimed.Claims))
	}
	if claimed.Version != 1 {
		t.Errorf("expected version 1 after the first claim, got %d", claimed.Version)
	}

	if _, err := a.Claim(ctx, testToken(1), pd.ID); !errors.Is(err, svcerrors.ErrDuplicateClaim) {
		t.Errorf("expected ErrDuplicateClaim on a repeated claim, got %v", err)
	}

	if _, err := a.Claim(ctx, testToken(2), pd.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Claim(ctx, testToken(3), pd.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Claim(ctx, testToken(4), pd.ID); !errors.Is(err, svcerrors.ErrPoolDropFull) {
		t.Errorf("expected ErrPoolDropFull, got %v", err)
	}

	if _, err := a.Claim(ctx, testToken(1), "unknown"); !errors.Is(err, svcerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown drop, got %v", err)
	}
}

// With more contenders than slots every claimer either commits or is told the
// drop is full; the committed claim count never exceeds the participant count.
func TestClaimContention(t *testing.T) {
	const participants = 3
	const contenders = 8

	a, store, _ := newTestApp()
	ctx := context.Background()
	pd := insertTestPoolDrop(t, store, participants)

	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.Claim(ctx, testToken(i+1), pd.ID)
		}(i)
	}
	wg.Wait()

	committed := 0
	for i, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, svcerrors.ErrPoolDropFull):
		default:
			t.Errorf("contender %d: unexpected error %v", i, err)
		}
	}
	if committed != participants {
		t.Errorf("expected exactly %d committed claims, got %d", participants, committed)
	}

	stored, err := store.GetPoolDrop(pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Claims) != participants {
		t.Errorf("expected %d stored claims, got %d", participants, len(stored.Claims))
	}
	if stored.Version != participants {
		t.Errorf("expected version %d, got %d", participants, stored.Version)
	}
}

// conflictingStore makes the first updates fail with a version conflict to
// force the optimistic retry path.
type conflictingStore struct {
	*memoryStore
	failures int
}

func (s *conflictingStore) UpdatePoolDrop(pd *PoolDrop, expectedVersion uint64) error {
	if s.failures > 0 {
		s.failures--
		return svcerrors.ErrVersionConflict
	}
	return s.memoryStore.UpdatePoolDrop(pd, expectedVersion)
}

func TestClaimRetriesOnVersionConflict(t *testing.T) {
	cfg := &config.Config{UpdateRetryCount: 5}
	store := &conflictingStore{memoryStore: newMemoryStore(), failures: 2}
	a := New(cfg, store, &testWallet{}, &testChain{decimals: 6})
	ctx := context.Background()
	pd := insertTestPoolDrop(t, store, 3)

	claimed, err := a.Claim(ctx, testToken(1), pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed.Claims) != 1 {
		t.Errorf("expected exactly 1 claim after retries, got %d", len(claimed.Claims))
	}
}

func TestClaimGivesUpAfterRetriesExhausted(t *testing.T) {
	cfg := &config.Config{UpdateRetryCount: 2}
	store := &conflictingStore{memoryStore: newMemoryStore(), failures: 100}
	a := New(cfg, store, &testWallet{}, &testChain{decimals: 6})
	pd := insertTestPoolDrop(t, store, 3)

	if _, err := a.Claim(context.Background(), testToken(1), pd.ID); !errors.Is(err, svcerrors.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict after exhausted retries, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	a, store, _ := newTestApp()
	ctx := context.Background()
	pd := insertTestPoolDrop(t, store, 3)

	if _, err := a.Cancel(ctx, testToken(1), pd.ID); !errors.Is(err, svcerrors.ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}

	cancelled, err := a.Cancel(ctx, testToken(0), pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.State() != common.PoolDropStateCancelled {
		t.Errorf("expected cancelled state, got %s", cancelled.State())
	}

	if _, err := a.Cancel(ctx, testToken(0), pd.ID); !errors.Is(err, svcerrors.ErrAlreadyCancelled) {
		t.Errorf("expected ErrAlreadyCancelled on a second cancel, got %v", err)
	}

	if _, err := a.Claim(ctx, testToken(1), pd.ID); !errors.Is(err, svcerrors.ErrAlreadyCancelled) {
		t.Errorf("expected ErrAlreadyCancelled on claim after cancel, got %v", err)
	}
}

func TestExecute(t *testing.T) {
	a, store, _ := newTestApp()
	ctx := context.Background()
	pd := insertTestPoolDrop(t, store, 3)

	// Nothing claimed yet
	if _, err := a.Execute(ctx, testToken(0), pd.ID); err == nil {
		t.Error("expected execute with no claims to fail")
	}

	if _, err := a.Claim(ctx, testToken(1), pd.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Claim(ctx, testToken(2), pd.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Execute(ctx, testToken(1), pd.ID); !errors.Is(err, svcerrors.ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}

	requestID, err := a.Execute(ctx, testToken(0), pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if requestID != "signing-request-1" {
		t.Errorf("unexpected signing request id %s", requestID)
	}

	stored, err := store.GetPoolDrop(pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.State() != common.PoolDropStateExecuted {
		t.Errorf("expected executed state, got %s", stored.State())
	}

	request, err := store.LatestSigningRequest(pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if request.State != common.SigningRequestStateSent {
		t.Errorf("expected sent signing request, got %s", request.State)
	}
	if request.RequestID != "signing-request-1" {
		t.Errorf("unexpected recorded request id %s", request.RequestID)
	}
	calls, err := request.CallRequests()
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 {
		t.Errorf("expected 2 recorded calls, got %d", len(calls))
	}

	if _, err := a.Execute(ctx, testToken(0), pd.ID); !errors.Is(err, svcerrors.ErrAlreadyExecuted) {
		t.Errorf("expected ErrAlreadyExecuted on a second execute, got %v", err)
	}
	if _, err := a.Cancel(ctx, testToken(0), pd.ID); !errors.Is(err, svcerrors.ErrAlreadyExecuted) {
		t.Errorf("expected ErrAlreadyExecuted on cancel after execute, got %v", err)
	}
	if _, err := a.Claim(ctx, testToken(3), pd.ID); !errors.Is(err, svcerrors.ErrAlreadyExecuted) {
		t.Errorf("expected ErrAlreadyExecuted on claim after execute, got %v", err)
	}
}

// A failed signing submission leaves the record executed. This process can not
// know whether anything was signed, so nothing is rolled back; the failure is
// recorded on the signing request.
func TestExecuteSigningFailure(t *testing.T) {
	a, store, w := newTestApp()
	ctx := context.Background()
	pd := insertTestPoolDrop(t, store, 3)

	if _, err := a.Claim(ctx, testToken(1), pd.ID); err != nil {
		t.Fatal(err)
	}

	w.signErr = errors.New("signing service unavailable")

	if _, err := a.Execute(ctx, testToken(0), pd.ID); err == nil {
		t.Fatal("expected execute to fail")
	}

	stored, err := store.GetPoolDrop(pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Executed {
		t.Error("expected the record to stay executed after a failed submission")
	}

	request, err := store.LatestSigningRequest(pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if request.State != common.SigningRequestStateFailed {
		t.Errorf("expected failed signing request, got %s", request.State)
	}
	if request.Error == "" {
		t.Error("expected the failure reason to be recorded")
	}
}

func TestAttachTransactionIDs(t *testing.T) {
	a, store, _ := newTestApp()
	ctx := context.Background()
	pd := insertTestPoolDrop(t, store, 3)

	if _, err := a.Claim(ctx, testToken(1), pd.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Execute(ctx, testToken(0), pd.ID); err != nil {
		t.Fatal(err)
	}

	updated, err := a.AttachTransactionIDs(ctx, pd.ID, []string{"0xaa", "0xbb"})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.TransactionIDs) != 2 {
		t.Errorf("expected 2 transaction ids, got %v", updated.TransactionIDs)
	}

	// Repeated callback delivery must not duplicate ids
	updated, err = a.AttachTransactionIDs(ctx, pd.ID, []string{"0xbb"})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.TransactionIDs) != 2 {
		t.Errorf("expected ids to deduplicate, got %v", updated.TransactionIDs)
	}

	request, err := store.LatestSigningRequest(pd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if request.State != common.SigningRequestStateComplete {
		t.Errorf("expected complete signing request, got %s", request.State)
	}
	if !request.TransactionIDs.Contains("0xaa") || !request.TransactionIDs.Contains("0xbb") {
		t.Errorf("expected transaction ids on the signing request, got %v", request.TransactionIDs)
	}
}

func TestListActive(t *testing.T) {
	a, store, _ := newTestApp()
	ctx := context.Background()

	open := insertTestPoolDrop(t, store, 3)

	other := testPoolDrop(3)
	other.ID = "other-currency"
	other.CreatorID = "user-0"
	other.Currency = "ETHEREUM:0x41102b3e1ebA132d37e5F8571C6b5AAd76d99b65"
	if err := store.InsertPoolDrop(other); err != nil {
		t.Fatal(err)
	}

	foreign := testPoolDrop(3)
	foreign.ID = "foreign"
	foreign.CreatorID = "user-9"
	foreign.Currency = testCurrency
	if err := store.InsertPoolDrop(foreign); err != nil {
		t.Fatal(err)
	}

	ids, err := a.ListActive(ctx, testToken(0), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 active drops, got %v", ids)
	}

	ids, err = a.ListActive(ctx, testToken(0), testCurrency)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != open.ID {
		t.Errorf("expected only %s, got %v", open.ID, ids)
	}

	if _, err := a.Cancel(ctx, testToken(0), open.ID); err != nil {
		t.Fatal(err)
	}

	ids, err = a.ListActive(ctx, testToken(0), testCurrency)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no active drops for the currency after cancel, got %v", ids)
	}
}
