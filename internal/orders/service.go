// Package orders runs the customer-facing operations against a tenant's
// sheet: building the cart, recording an order in the ledger, listing past
// orders and recording feedback.
package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/dailyledger/internal/cart"
	"github.com/angelmondragon/dailyledger/internal/catalog"
	"github.com/angelmondragon/dailyledger/internal/cutoff"
	"github.com/angelmondragon/dailyledger/internal/directory"
	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/internal/ledger"
	"github.com/angelmondragon/dailyledger/internal/notifications"
	"github.com/angelmondragon/dailyledger/internal/sheets"
	"github.com/angelmondragon/dailyledger/pkg/config"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/angelmondragon/dailyledger/pkg/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

const maxRating = 5

// Service defines the order operations exposed to the HTTP layer.
type Service interface {
	GetCartData(ctx context.Context, tenant, userID string) (cart.Data, error)
	BuildCart(ctx context.Context, tenant, userID string) (*cart.Model, error)
	SubmitOrder(ctx context.Context, tenant, userID string, input SubmitInput) (Receipt, error)
	RecordFeedback(ctx context.Context, tenant, userID, orderNumber string, input FeedbackInput) error
	ListOrders(ctx context.Context, tenant, userID string) (History, error)
}

// Notifier announces written orders.
type Notifier interface {
	FanOut(ctx context.Context, ev notifications.Event, recipients []directory.User)
}

// Params wires a Service. Notifier, Lease and Metrics are optional.
type Params struct {
	Store    sheets.Store
	Ledger   config.LedgerConfig
	Cart     config.CartConfig
	Policy   *cutoff.Policy
	Clock    cutoff.Clock
	Notifier Notifier
	Lease    LeaseLocker
	Metrics  *metrics.LedgerMetrics
	Logger   *logger.Logger
}

type service struct {
	store    sheets.Store
	cfg      config.LedgerConfig
	cartOpts cart.Options
	policy   *cutoff.Policy
	clock    cutoff.Clock
	notifier Notifier
	lease    LeaseLocker
	lockTTL  time.Duration
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
	lang     language.Tag
	mutex    *keyedMutex
}

// NewService validates p and builds the order service.
func NewService(p Params) (Service, error) {
	if p.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sheet store required")
	}
	if p.Policy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cutoff policy required")
	}
	if p.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if p.Clock == nil {
		p.Clock = cutoff.SystemClock{}
	}
	lang := language.English
	if tag := strings.TrimSpace(p.Ledger.CollateLang); tag != "" {
		parsed, err := language.Parse(tag)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid collate language")
		}
		lang = parsed
	}
	ttl := p.Ledger.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	opts := cart.Options{
		Granularity:  int64(p.Cart.Granularity),
		OrderMeasure: p.Cart.OrderMeasure,
		MaxQuantity:  p.Cart.MaxQuantity,
	}
	return &service{
		store:    p.Store,
		cfg:      p.Ledger,
		cartOpts: opts,
		policy:   p.Policy,
		clock:    p.Clock,
		notifier: p.Notifier,
		lease:    p.Lease,
		lockTTL:  ttl,
		metrics:  p.Metrics,
		logg:     p.Logger,
		lang:     lang,
		mutex:    newKeyedMutex(),
	}, nil
}

type snapshot struct {
	catalog *catalog.Catalog
	users   *directory.Directory
	ledger  *ledger.Ledger
}

func (s *service) scope(ctx context.Context, tenant, userID string) (context.Context, string, error) {
	sheetID, ok := s.cfg.SheetID(tenant)
	if !ok {
		return ctx, "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown tenant %q", tenant))
	}
	ctx = s.logg.WithTenant(ctx, tenant)
	ctx = s.logg.WithSheetID(ctx, sheetID)
	if userID != "" {
		ctx = s.logg.WithUserID(ctx, userID)
	}
	return ctx, sheetID, nil
}

// load reads the three grids in one call and parses them. Parse warnings
// are logged and never fail the request.
func (s *service) load(ctx context.Context, sheetID string) (snapshot, error) {
	grids, err := s.store.ReadGrids(ctx, sheetID, s.cfg.Ranges())
	if err != nil {
		return snapshot{}, storeError(err, "read sheet")
	}
	return s.parse(ctx, grids), nil
}

// loadFresh is load past any read cache. Writers call it under the ledger
// lock so the plan is built from what is actually stored.
func (s *service) loadFresh(ctx context.Context, sheetID string) (snapshot, error) {
	grids, err := sheets.ReadFresh(ctx, s.store, sheetID, s.cfg.Ranges())
	if err != nil {
		return snapshot{}, storeError(err, "read sheet")
	}
	return s.parse(ctx, grids), nil
}

func (s *service) parse(ctx context.Context, grids map[string]grid.Grid) snapshot {
	var snap snapshot
	var warnings []grid.ParseWarning
	var w []grid.ParseWarning

	snap.catalog, w = catalog.Build(grids[s.cfg.PricesRange])
	warnings = append(warnings, w...)
	snap.users, w = directory.Build(grids[s.cfg.UsersRange])
	warnings = append(warnings, w...)
	snap.ledger, w = ledger.Parse(grids[s.cfg.OrdersRange])
	warnings = append(warnings, w...)

	for _, warning := range warnings {
		logCtx := s.logg.WithFields(ctx, map[string]any{"sheet": warning.Sheet, "key": warning.Key})
		s.logg.Warn(logCtx, warning.Message)
	}
	return snap
}

func (s *service) user(snap snapshot, userID string) (directory.User, error) {
	u, ok := snap.users.Lookup(strings.TrimSpace(userID))
	if !ok {
		return directory.User{}, pkgerrors.New(pkgerrors.CodeRefused, fmt.Sprintf("user %s is not registered", userID))
	}
	return u, nil
}

func (s *service) cartData(snap snapshot, user directory.User, now time.Time) cart.Data {
	today := s.policy.Today(now)
	entries := snap.catalog.Effective(today, s.lang)
	data := cart.Data{Date: today, User: user, Entries: entries}
	order, found, _ := snap.ledger.Find(user.ID, today)
	if found {
		data.ExistingOrder = &order
		data.Items = snap.catalog.Items
	}
	cutoffCell, _ := snap.catalog.Cutoff(today)
	data.Decision = s.policy.Decide(cutoffCell, now, len(entries) > 0, found)
	return data
}

func (s *service) GetCartData(ctx context.Context, tenant, userID string) (cart.Data, error) {
	ctx, sheetID, err := s.scope(ctx, tenant, userID)
	if err != nil {
		return cart.Data{}, err
	}
	snap, err := s.load(ctx, sheetID)
	if err != nil {
		return cart.Data{}, err
	}
	user, err := s.user(snap, userID)
	if err != nil {
		return cart.Data{}, err
	}
	return s.cartData(snap, user, s.clock.Now()), nil
}

func (s *service) BuildCart(ctx context.Context, tenant, userID string) (*cart.Model, error) {
	data, err := s.GetCartData(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}
	return cart.NewModel(data, s.cartOpts)
}

// SubmitOrder replaces the customer's order for today with input. The whole
// read, reconcile and write runs under the ledger lock.
func (s *service) SubmitOrder(ctx context.Context, tenant, userID string, input SubmitInput) (receipt Receipt, err error) {
	started := time.Now()
	outcome := metrics.OutcomeFailed
	defer func() {
		if err != nil && isRefusal(err) {
			outcome = metrics.OutcomeRefused
		}
		s.metrics.IncSubmission(tenant, outcome)
		s.metrics.ObserveReconcile(tenant, time.Since(started))
	}()

	ctx, sheetID, err := s.scope(ctx, tenant, userID)
	if err != nil {
		return Receipt{}, err
	}
	unlock, err := s.lockLedger(ctx, sheetID)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	snap, err := s.loadFresh(ctx, sheetID)
	if err != nil {
		return Receipt{}, err
	}
	user, err := s.user(snap, userID)
	if err != nil {
		return Receipt{}, err
	}

	data := s.cartData(snap, user, s.clock.Now())
	switch data.Decision.State {
	case cutoff.StateEmpty:
		return Receipt{}, pkgerrors.New(pkgerrors.CodeRefused, "nothing is on sale today")
	case cutoff.StateReadOnly, cutoff.StateRefused:
		return Receipt{}, pkgerrors.New(pkgerrors.CodeRefused, fmt.Sprintf("ordering closed at %s", data.Decision.Display))
	}

	// A submission replaces the whole order, so quantities start from zero.
	data.ExistingOrder = nil
	model, err := cart.NewModel(data, s.cartOpts)
	if err != nil {
		return Receipt{}, err
	}
	codes := make([]string, 0, len(input.Items))
	for code := range input.Items {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if _, ok := model.Row(code); !ok {
			return Receipt{}, pkgerrors.New(pkgerrors.CodeRefused, fmt.Sprintf("item %s is not on sale today", code))
		}
		if err := model.SetQuantity(code, input.Items[code]); err != nil {
			return Receipt{}, err
		}
	}
	sub, err := model.Submission()
	if err != nil {
		return Receipt{}, err
	}
	if len(sub.Lines) == 0 {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeRefused, "order has no items")
	}

	plan, err := snap.ledger.Reconcile(sub)
	if err != nil {
		return Receipt{}, err
	}
	if len(plan.Duplicates) > 0 {
		s.metrics.AddDuplicates(tenant, len(plan.Duplicates))
		s.logg.Warn(s.logg.WithField(ctx, "duplicate_rows", plan.Duplicates), "ledger has several rows for this user and date; updating the first")
	}

	if plan.HeaderPatch != nil {
		if err := s.store.WriteRow(ctx, sheetID, s.cfg.OrdersRange, 0, plan.HeaderPatch); err != nil {
			return Receipt{}, storeError(err, "write ledger header")
		}
		s.metrics.AddSchemaExtensions(tenant, len(plan.NewCodes))
		if err := s.verifyColumns(ctx, sheetID, plan); err != nil {
			return Receipt{}, err
		}
	}

	if plan.Row.Append {
		if _, err := s.store.AppendRow(ctx, sheetID, s.cfg.OrdersRange, plan.Row.Cells); err != nil {
			return Receipt{}, storeError(err, "append ledger row")
		}
		outcome = metrics.OutcomeAppended
	} else {
		if err := s.store.WriteRow(ctx, sheetID, s.cfg.OrdersRange, plan.Row.RowIndex, plan.Row.Cells); err != nil {
			return Receipt{}, storeError(err, "write ledger row")
		}
		outcome = metrics.OutcomeUpdated
	}

	receipt = Receipt{
		OrderNumber: plan.OrderNumber,
		Date:        sub.Date,
		Updated:     plan.Updated,
		Value:       sub.Value,
		Items:       make(map[string]string, len(plan.Columns)),
		NewCodes:    plan.NewCodes,
	}
	for code, col := range plan.Columns {
		receipt.Items[code] = plan.Row.Cells.Cell(ledger.HeaderColumns + col)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_number": plan.OrderNumber,
		"updated":      plan.Updated,
		"value":        sub.Value,
	}), "order recorded")

	s.announce(ctx, tenant, snap, sub, plan, receipt)
	return receipt, nil
}

// verifyColumns re-reads the header after a patch and fails when another
// writer moved any submitted code.
func (s *service) verifyColumns(ctx context.Context, sheetID string, plan ledger.Plan) error {
	grids, err := sheets.ReadFresh(ctx, s.store, sheetID, []string{s.cfg.OrdersRange})
	if err != nil {
		return storeError(err, "re-read ledger header")
	}
	rows := grids[s.cfg.OrdersRange]
	if len(rows) == 0 {
		return pkgerrors.New(pkgerrors.CodeSchemaConflict, "ledger header missing after write")
	}
	header := rows[0]
	for code, col := range plan.Columns {
		if got := strings.TrimSpace(header.Cell(ledger.HeaderColumns + col)); got != code {
			return pkgerrors.New(pkgerrors.CodeSchemaConflict, fmt.Sprintf("item %s expected in column %d, found %q", code, ledger.HeaderColumns+col, got))
		}
	}
	return nil
}

func (s *service) announce(ctx context.Context, tenant string, snap snapshot, sub ledger.Submission, plan ledger.Plan, receipt Receipt) {
	if s.notifier == nil {
		return
	}
	ev := notifications.Event{
		Tenant:       tenant,
		Vendor:       s.cfg.VendorName,
		OrderNumber:  plan.OrderNumber,
		Date:         sub.Date,
		CustomerName: sub.Name,
		UserID:       sub.UserID,
		Value:        sub.Value,
		Updated:      plan.Updated,
	}
	for _, line := range sub.Lines {
		name := line.Code
		if item, ok := snap.catalog.Items[line.Code]; ok && item.DisplayName != "" {
			name = item.DisplayName
		}
		ev.Lines = append(ev.Lines, notifications.EventLine{Name: name, Cell: receipt.Items[line.Code]})
	}
	s.notifier.FanOut(ctx, ev, snap.users.Subscribers())
}

func (s *service) RecordFeedback(ctx context.Context, tenant, userID, orderNumber string, input FeedbackInput) error {
	if input.Rating < 0 || input.Rating > maxRating {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rating must be between 0 and %d", maxRating))
	}
	ctx, sheetID, err := s.scope(ctx, tenant, userID)
	if err != nil {
		return err
	}
	unlock, err := s.lockLedger(ctx, sheetID)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := s.loadFresh(ctx, sheetID)
	if err != nil {
		return err
	}
	rating := ""
	if input.Rating > 0 {
		rating = fmt.Sprint(input.Rating)
	}
	write, err := snap.ledger.Feedback(strings.TrimSpace(userID), orderNumber, rating, input.FeedbackText)
	if err != nil {
		return err
	}
	if err := s.store.WriteRow(ctx, sheetID, s.cfg.OrdersRange, write.RowIndex, write.Cells); err != nil {
		return storeError(err, "write feedback")
	}
	s.logg.Info(s.logg.WithField(ctx, "order_number", orderNumber), "feedback recorded")
	return nil
}

func (s *service) ListOrders(ctx context.Context, tenant, userID string) (History, error) {
	ctx, sheetID, err := s.scope(ctx, tenant, userID)
	if err != nil {
		return History{}, err
	}
	snap, err := s.load(ctx, sheetID)
	if err != nil {
		return History{}, err
	}
	user, err := s.user(snap, userID)
	if err != nil {
		return History{}, err
	}

	today := s.policy.Today(s.clock.Now())
	todayOrder, hasToday, _ := snap.ledger.Find(user.ID, today)
	history := History{Past: []OrderView{}}
	if hasToday {
		view := orderView(todayOrder, snap.catalog)
		history.Today = &view
	}
	orders := snap.ledger.ForUser(user.ID)
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		if hasToday && o.RowIndex == todayOrder.RowIndex {
			continue
		}
		history.Past = append(history.Past, orderView(o, snap.catalog))
	}
	return history, nil
}

func orderView(o ledger.Order, cat *catalog.Catalog) OrderView {
	view := OrderView{
		OrderNumber:  o.OrderNumber,
		Date:         o.Date,
		Value:        o.Value,
		Paid:         o.IsPaid(),
		Rating:       o.Rating,
		FeedbackText: o.FeedbackText,
		Lines:        []LineView{},
	}
	for _, decoded := range o.Lines() {
		line := LineView{Code: decoded.Code, Cell: decoded.Cell}
		item, known := cat.Items[decoded.Code]
		if known {
			line.Name = item.DisplayName
		}
		switch {
		case decoded.Defect != nil:
			line.Defect = decoded.Defect.Error()
		case !known:
			line.Defect = fmt.Sprintf("item %s is not in the catalog", decoded.Code)
		}
		if decoded.Defect == nil {
			line.Quantity = decoded.Line.Quantity
			line.Unit = decoded.Line.Unit
			line.Price = decoded.Line.Price
			line.PriceMeasure = decoded.Line.PriceMeasure
			if price, ok := cart.LinePrice(decoded.Line.Quantity, decimal.NewFromInt(decoded.Line.Price)); ok {
				line.LinePrice = price
			} else {
				line.Defect = fmt.Sprintf("line price for %s is out of range", decoded.Code)
			}
		}
		view.Lines = append(view.Lines, line)
	}
	return view
}

func isRefusal(err error) bool {
	return pkgerrors.Is(err, pkgerrors.CodeRefused) ||
		pkgerrors.Is(err, pkgerrors.CodeValidation) ||
		pkgerrors.Is(err, pkgerrors.CodeEncoding)
}

// storeError keeps typed errors from the store and marks the rest as
// dependency failures.
func storeError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
