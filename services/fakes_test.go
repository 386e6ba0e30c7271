package services_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"github.com/yashrajoria/storefront/services"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Products ---

type fakeProducts struct {
	items map[primitive.ObjectID]*models.Product
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{items: make(map[primitive.ObjectID]*models.Product)}
	for _, p := range products {
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.items[p.ID] = p
	return nil
}

func (f *fakeProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := f.items[id]
	if !ok || p.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := f.items[id]; ok && p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) List(_ context.Context, _ models.ProductFilter) ([]models.Product, int64, error) {
	out := []models.Product{}
	for _, p := range f.items {
		if p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeProducts) Update(_ context.Context, id primitive.ObjectID, updates bson.M) (*models.Product, error) {
	p, ok := f.items[id]
	if !ok || p.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			p.Name = v.(string)
		case "price":
			p.Price = v.(float64)
		case "images":
			p.Images = v.([]string)
		case "sizes":
			p.Sizes = v.([]string)
		case "bestseller":
			p.Bestseller = v.(bool)
		}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	p, ok := f.items[id]
	if !ok || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (f *fakeProducts) SetRating(_ context.Context, id primitive.ObjectID, s models.RatingSummary) error {
	p, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.RatingAverage, p.RatingCount = s.Average, s.Count
	return nil
}

func (f *fakeProducts) Count(_ context.Context) (int64, error) {
	return int64(len(f.items)), nil
}

// --- Inventory ---

type fakeInventory struct {
	stock map[services.StockKey]int
	// decrementErr is returned for the matching product on Decrement
	decrementErr map[primitive.ObjectID]error
	// beforeDecrement runs once, ahead of the next Decrement
	beforeDecrement func()
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		stock:        make(map[services.StockKey]int),
		decrementErr: make(map[primitive.ObjectID]error),
	}
}

func (f *fakeInventory) set(id primitive.ObjectID, size string, n int) {
	f.stock[services.StockKey{ProductID: id, Size: size}] = n
}

func (f *fakeInventory) get(id primitive.ObjectID, size string) int {
	return f.stock[services.StockKey{ProductID: id, Size: size}]
}

func (f *fakeInventory) rows(match func(primitive.ObjectID) bool) []models.Inventory {
	out := []models.Inventory{}
	for k, n := range f.stock {
		if match(k.ProductID) {
			out = append(out, models.Inventory{ProductID: k.ProductID, Size: k.Size, Stock: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out
}

func (f *fakeInventory) FindByProduct(_ context.Context, id primitive.ObjectID) ([]models.Inventory, error) {
	return f.rows(func(p primitive.ObjectID) bool { return p == id }), nil
}

func (f *fakeInventory) FindByProducts(_ context.Context, ids []primitive.ObjectID) ([]models.Inventory, error) {
	want := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return f.rows(func(p primitive.ObjectID) bool { return want[p] }), nil
}

func (f *fakeInventory) Upsert(_ context.Context, id primitive.ObjectID, size string, stock int) (*models.Inventory, error) {
	f.set(id, size, stock)
	return &models.Inventory{ProductID: id, Size: size, Stock: stock}, nil
}

func (f *fakeInventory) Decrement(_ context.Context, id primitive.ObjectID, size string, qty int) error {
	if hook := f.beforeDecrement; hook != nil {
		f.beforeDecrement = nil
		hook()
	}
	if err := f.decrementErr[id]; err != nil {
		return err
	}
	k := services.StockKey{ProductID: id, Size: size}
	n, ok := f.stock[k]
	if !ok || n < qty {
		return repository.ErrInsufficientStock
	}
	f.stock[k] = n - qty
	return nil
}

func (f *fakeInventory) Increment(_ context.Context, id primitive.ObjectID, size string, qty int) error {
	f.stock[services.StockKey{ProductID: id, Size: size}] += qty
	return nil
}

func (f *fakeInventory) CountLowStock(_ context.Context, threshold int) (int64, error) {
	var n int64
	for _, s := range f.stock {
		if s <= threshold {
			n++
		}
	}
	return n, nil
}

// --- Orders ---

type fakeOrders struct {
	items       map[primitive.ObjectID]*models.Order
	trackingIDs map[string]bool
	// forceDuplicate makes the next n Create calls report ErrDuplicate
	forceDuplicate int
	findErr        error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{items: make(map[primitive.ObjectID]*models.Order), trackingIDs: make(map[string]bool)}
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	if f.forceDuplicate > 0 {
		f.forceDuplicate--
		return repository.ErrDuplicate
	}
	if f.trackingIDs[o.TrackingID] {
		return repository.ErrDuplicate
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	f.trackingIDs[o.TrackingID] = true
	cp := *o
	f.items[o.ID] = &cp
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	o, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) FindByTrackingID(_ context.Context, trackingID string) (*models.Order, error) {
	for _, o := range f.items {
		if o.TrackingID == trackingID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) List(_ context.Context, flt models.OrderFilter) ([]models.Order, int64, error) {
	out := []models.Order{}
	for _, o := range f.items {
		if flt.UserID != nil && o.UserID != *flt.UserID {
			continue
		}
		if flt.Status != "" && o.Status != flt.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func applyOrderUpdates(o *models.Order, updates bson.M) {
	for k, v := range updates {
		switch k {
		case "status":
			o.Status = v.(models.OrderStatus)
		case "payment_status":
			o.PaymentStatus = v.(models.PaymentStatus)
		case "cancel_reason":
			o.CancelReason = v.(string)
		case "cancelled_at":
			t := v.(time.Time)
			o.CancelledAt = &t
		case "delivered_at":
			t := v.(time.Time)
			o.DeliveredAt = &t
		case "stripe_session_id":
			o.StripeSessionID = v.(string)
		}
	}
}

func (f *fakeOrders) Update(_ context.Context, id primitive.ObjectID, updates bson.M) error {
	o, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	applyOrderUpdates(o, updates)
	return nil
}

func (f *fakeOrders) UpdateIfStatus(_ context.Context, id primitive.ObjectID, from []models.OrderStatus, updates bson.M) (*models.Order, error) {
	o, ok := f.items[id]
	if !ok {
		return nil, repository.ErrConflict
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, repository.ErrConflict
	}
	applyOrderUpdates(o, updates)
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) SetStockDeducted(_ context.Context, id primitive.ObjectID, deducted bool) (bool, error) {
	o, ok := f.items[id]
	if !ok || o.StockDeducted == deducted {
		return false, nil
	}
	o.StockDeducted = deducted
	return true, nil
}

func (f *fakeOrders) Stats(_ context.Context) (int64, float64, map[models.OrderStatus]int64, error) {
	byStatus := map[models.OrderStatus]int64{}
	var revenue float64
	for _, o := range f.items {
		byStatus[o.Status]++
		if o.PaymentStatus == models.PaymentStatusPaid {
			revenue += o.Total
		}
	}
	return int64(len(f.items)), revenue, byStatus, nil
}

func (f *fakeOrders) only() *models.Order {
	for _, o := range f.items {
		return o
	}
	return nil
}

// --- Payments ---

type fakePayments struct {
	items map[primitive.ObjectID]*models.PaymentDetails
}

func newFakePayments() *fakePayments {
	return &fakePayments{items: make(map[primitive.ObjectID]*models.PaymentDetails)}
}

func (f *fakePayments) Create(_ context.Context, p *models.PaymentDetails) error {
	if _, ok := f.items[p.OrderID]; ok {
		return repository.ErrDuplicate
	}
	cp := *p
	f.items[p.OrderID] = &cp
	return nil
}

func (f *fakePayments) FindByOrderID(_ context.Context, orderID primitive.ObjectID) (*models.PaymentDetails, error) {
	p, ok := f.items[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) UpdateByOrderID(_ context.Context, orderID primitive.ObjectID, updates bson.M) error {
	p, ok := f.items[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			p.Status = v.(models.PaymentStatus)
		case "stripe_session_id":
			p.StripeSessionID = v.(string)
		case "stripe_payment_intent_id":
			p.StripePaymentIntentID = v.(string)
		case "failure_reason":
			p.FailureReason = v.(string)
		case "paid_at":
			t := v.(time.Time)
			p.PaidAt = &t
		}
	}
	return nil
}

// --- Addresses ---

type fakeAddresses struct {
	items []*models.Address
}

func (f *fakeAddresses) Create(_ context.Context, a *models.Address) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt = time.Now()
	cp := *a
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeAddresses) FindByID(_ context.Context, id, userID primitive.ObjectID) (*models.Address, error) {
	for _, a := range f.items {
		if a.ID == id && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAddresses) FindByUser(_ context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	out := []models.Address{}
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			out = append(out, *f.items[i])
		}
	}
	return out, nil
}

func (f *fakeAddresses) FindDefault(_ context.Context, userID primitive.ObjectID) (*models.Address, error) {
	for _, a := range f.items {
		if a.UserID == userID && a.IsDefault {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAddresses) Update(_ context.Context, a *models.Address) error {
	for i, cur := range f.items {
		if cur.ID == a.ID && cur.UserID == a.UserID {
			cp := *a
			f.items[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeAddresses) Delete(_ context.Context, id, userID primitive.ObjectID) error {
	for i, a := range f.items {
		if a.ID == id && a.UserID == userID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeAddresses) ClearDefault(_ context.Context, userID, except primitive.ObjectID) error {
	for _, a := range f.items {
		if a.UserID == userID && a.ID != except {
			a.IsDefault = false
		}
	}
	return nil
}

func (f *fakeAddresses) CountByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	var n int64
	for _, a := range f.items {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- Users ---

type fakeUsers struct {
	items map[primitive.ObjectID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{items: make(map[primitive.ObjectID]*models.User)}
	for _, u := range users {
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByClerkID(_ context.Context, clerkID string) (*models.User, error) {
	for _, u := range f.items {
		if u.ClerkID == clerkID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) FindOrCreate(ctx context.Context, u *models.User) (*models.User, error) {
	if existing, err := f.FindByClerkID(ctx, u.ClerkID); err == nil {
		return existing, nil
	}
	u.ID = primitive.NewObjectID()
	cp := *u
	f.items[u.ID] = &cp
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, id primitive.ObjectID, updates bson.M) (*models.User, error) {
	u, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			u.Name = v.(string)
		case "avatar_url":
			u.AvatarURL = v.(string)
		case "role":
			u.Role = v.(string)
		}
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) List(_ context.Context, _, _ int) ([]models.User, int64, error) {
	out := []models.User{}
	for _, u := range f.items {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsers) Count(_ context.Context) (int64, error) {
	return int64(len(f.items)), nil
}

// --- Reviews ---

type fakeReviews struct {
	items []*models.Review
}

func (f *fakeReviews) Create(_ context.Context, r *models.Review) error {
	for _, cur := range f.items {
		if cur.ProductID == r.ProductID && cur.UserID == r.UserID {
			return repository.ErrDuplicate
		}
	}
	r.ID = primitive.NewObjectID()
	cp := *r
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeReviews) FindByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	for _, r := range f.items {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReviews) ListByProduct(_ context.Context, productID primitive.ObjectID, _, _ int) ([]models.Review, int64, error) {
	out := []models.Review{}
	for _, r := range f.items {
		if r.ProductID == productID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeReviews) Delete(_ context.Context, id primitive.ObjectID) error {
	for i, r := range f.items {
		if r.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeReviews) Summary(_ context.Context, productID primitive.ObjectID) (models.RatingSummary, error) {
	var sum, n int
	for _, r := range f.items {
		if r.ProductID == productID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{Average: float64(sum) / float64(n), Count: n}, nil
}

// --- Carts ---

type fakeCarts struct {
	items map[string]*models.Cart
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{items: make(map[string]*models.Cart)}
}

func (f *fakeCarts) Get(_ context.Context, userID string) (*models.Cart, error) {
	c, ok := f.items[userID]
	if !ok {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	cp := *c
	cp.Items = append([]models.CartItem{}, c.Items...)
	return &cp, nil
}

func (f *fakeCarts) Save(_ context.Context, c *models.Cart) error {
	if len(c.Items) == 0 {
		delete(f.items, c.UserID)
		return nil
	}
	cp := *c
	cp.Items = append([]models.CartItem{}, c.Items...)
	f.items[c.UserID] = &cp
	return nil
}

func (f *fakeCarts) Delete(_ context.Context, userID string) error {
	delete(f.items, userID)
	return nil
}

// --- Transactions, gateway, event claims ---

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeGateway struct {
	created    []*models.Order
	createErr  error
	session    *models.CheckoutSession
	getErr     error
	expired    []string
	refunded   []string
	refundErr  error
	event      stripe.Event
	parseErr   error
	sessionSeq int
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, o *models.Order) (*models.CheckoutSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, o)
	f.sessionSeq++
	return &models.CheckoutSession{
		ID:      "cs_test_" + o.ID.Hex(),
		URL:     "https://checkout.stripe.test/pay/" + o.ID.Hex(),
		OrderID: o.ID.Hex(),
		Status:  "open",
	}, nil
}

func (f *fakeGateway) GetCheckoutSession(_ context.Context, _ string) (*models.CheckoutSession, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.session, nil
}

func (f *fakeGateway) ExpireCheckoutSession(_ context.Context, sessionID string) error {
	f.expired = append(f.expired, sessionID)
	return nil
}

func (f *fakeGateway) Refund(_ context.Context, paymentIntentID string) error {
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunded = append(f.refunded, paymentIntentID)
	return nil
}

func (f *fakeGateway) ParseWebhook(_ []byte, _ string) (stripe.Event, error) {
	if f.parseErr != nil {
		return stripe.Event{}, f.parseErr
	}
	return f.event, nil
}

type fakeClaimer struct {
	seen     map[string]bool
	released []string
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{seen: make(map[string]bool)}
}

func (f *fakeClaimer) Claim(_ context.Context, eventID string) (bool, error) {
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeClaimer) Release(_ context.Context, eventID string) error {
	delete(f.seen, eventID)
	f.released = append(f.released, eventID)
	return nil
}

var errBoom = errors.New("boom")

// --- Events ---

type publishedEvent struct {
	topic     string
	eventType string
	body      []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []publishedEvent
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, topicArn string, message []byte) error {
	return f.PublishEvent(ctx, topicArn, "", message)
}

func (f *fakePublisher) PublishEvent(_ context.Context, topicArn, eventType string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, publishedEvent{topic: topicArn, eventType: eventType, body: message})
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, e := range f.sent {
		out = append(out, e.eventType)
	}
	return out
}

// fakeMetrics receives counters recorded from background goroutines.
type fakeMetrics struct {
	names chan string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{names: make(chan string, 32)}
}

func (f *fakeMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	f.names <- name
	return nil
}

func (f *fakeMetrics) next(t require.TestingT) string {
	select {
	case n := <-f.names:
		return n
	case <-time.After(time.Second):
		require.Fail(t, "no metric recorded")
		return ""
	}
}

// --- Fixture ---

type shop struct {
	products  *fakeProducts
	stock     *fakeInventory
	orders    *fakeOrders
	payments  *fakePayments
	addresses *fakeAddresses
	users     *fakeUsers
	carts     *fakeCarts
	tx        *fakeTx
	gateway   *fakeGateway
	claims    *fakeClaimer

	inventory services.InventoryService
	cart      services.CartService
	orderSvc  services.OrderService
	paySvc    services.PaymentService

	buyer   *models.User
	shirt   *models.Product
	mug     *models.Product
	address models.AddressRequest
}

// newShop stocks a shirt (S: 5, M: 2) priced 1000 at 10% off and an
// unsized mug priced 300, with a buyer who has no saved address.
func newShop() *shop {
	return newShopWithEvents(nil)
}

func newShopWithEvents(events *services.OrderEvents) *shop {
	s := &shop{
		shirt: &models.Product{ID: primitive.NewObjectID(), Name: "Cotton Shirt", Price: 1000, DiscountPercent: 10, Sizes: []string{"S", "M"}, Images: []string{"https://img.test/shirt.png"}},
		mug:   &models.Product{ID: primitive.NewObjectID(), Name: "Mug", Price: 300},
		buyer: &models.User{ID: primitive.NewObjectID(), ClerkID: "user_buyer", Name: "Asha", Role: models.RoleUser},
		address: models.AddressRequest{
			FullName: "Asha Rao", Phone: "9999999999", Line1: "12 MG Road",
			City: "Pune", State: "MH", PostalCode: "411001", Country: "IN",
		},
	}
	s.products = newFakeProducts(s.shirt, s.mug)
	s.stock = newFakeInventory()
	s.stock.set(s.shirt.ID, "S", 5)
	s.stock.set(s.shirt.ID, "M", 2)
	s.stock.set(s.mug.ID, "", 10)
	s.orders = newFakeOrders()
	s.payments = newFakePayments()
	s.addresses = &fakeAddresses{}
	s.users = newFakeUsers(s.buyer)
	s.carts = newFakeCarts()
	s.tx = &fakeTx{}
	s.gateway = &fakeGateway{}
	s.claims = newFakeClaimer()

	logger := zap.NewNop()
	pricing := services.NewPricing(99, 2000, "INR")
	s.inventory = services.NewInventoryService(s.stock, s.products, logger)
	s.cart = services.NewCartService(s.carts, s.products, s.inventory, pricing, logger)

	deps := services.OrderDeps{
		Orders:    s.orders,
		Payments:  s.payments,
		Products:  s.products,
		Users:     s.users,
		Stock:     s.stock,
		Inventory: s.inventory,
		Addresses: services.NewAddressService(s.addresses, logger),
		Carts:     s.cart,
		Gateway:   s.gateway,
		Tx:        s.tx,
		Events:    events,
		Pricing:   pricing,
		Logger:    logger,
	}
	s.orderSvc = services.NewOrderService(deps)
	s.paySvc = services.NewPaymentService(deps, s.claims)
	return s
}

func (s *shop) line(p *models.Product, size string, qty int) models.OrderLineRequest {
	return models.OrderLineRequest{ProductID: p.ID.Hex(), Size: size, Quantity: qty}
}

func (s *shop) place(method models.PaymentMethod, lines ...models.OrderLineRequest) (*models.PlaceOrderResponse, *services.ServiceError) {
	addr := s.address
	return s.orderSvc.PlaceOrder(context.Background(), s.buyer.ID, &models.PlaceOrderRequest{
		Items:         lines,
		Address:       &addr,
		PaymentMethod: method,
	})
}
