package memory

import (
	"context"
	"time"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

const defaultLockWait = 2 * time.Second

// state — всё содержимое хранилища. Мутируется только внутри WithinTx
// на копии; успешный коммит подменяет указатель целиком.
type state struct {
	orders          map[string]domain.Order
	customers       map[string]domain.Customer
	inventory       map[string]domain.InventoryRecord // ключ — product_id
	products        map[string]domain.ProductInfo
	staff           map[string]domain.StaffInfo
	outbox          map[string]*outboxRecord
	lastOrderNumber int64
}

func newState() *state {
	return &state{
		orders:    make(map[string]domain.Order),
		customers: make(map[string]domain.Customer),
		inventory: make(map[string]domain.InventoryRecord),
		products:  make(map[string]domain.ProductInfo),
		staff:     make(map[string]domain.StaffInfo),
		outbox:    make(map[string]*outboxRecord),
	}
}

func (s *state) clone() *state {
	next := &state{
		orders:          make(map[string]domain.Order, len(s.orders)),
		customers:       make(map[string]domain.Customer, len(s.customers)),
		inventory:       make(map[string]domain.InventoryRecord, len(s.inventory)),
		products:        make(map[string]domain.ProductInfo, len(s.products)),
		staff:           make(map[string]domain.StaffInfo, len(s.staff)),
		outbox:          make(map[string]*outboxRecord, len(s.outbox)),
		lastOrderNumber: s.lastOrderNumber,
	}
	for id, order := range s.orders {
		next.orders[id] = copyOrder(order)
	}
	for id, customer := range s.customers {
		next.customers[id] = customer
	}
	for id, record := range s.inventory {
		next.inventory[id] = record
	}
	for id, product := range s.products {
		next.products[id] = product
	}
	for id, member := range s.staff {
		next.staff[id] = member
	}
	for id, record := range s.outbox {
		recordCopy := *record
		next.outbox[id] = &recordCopy
	}
	return next
}

func copyOrder(order domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines
	return order
}

// Store — in-memory реализация domain.Store для тестов и локальной разработки.
// Один писатель за раз: транзакция держит семафор, ожидание ограничено
// lockWait и завершается ErrTxBusy.
type Store struct {
	sem      chan struct{}
	lockWait time.Duration
	st       *state
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	s := &Store{
		sem:      make(chan struct{}, 1),
		lockWait: defaultLockWait,
		st:       newState(),
	}
	return s
}

// SetLockWait переопределяет таймаут ожидания транзакционной блокировки.
func (s *Store) SetLockWait(d time.Duration) {
	if d > 0 {
		s.lockWait = d
	}
}

func (s *Store) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return domain.ErrTxBusy
	}
}

func (s *Store) release() {
	<-s.sem
}

// WithinTx выполняет fn на копии состояния и подменяет состояние при успехе.
// Любая ошибка из fn оставляет хранилище нетронутым.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	work := s.st.clone()
	if err := fn(ctx, &unitOfWork{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// SeedProduct добавляет товар каталога вместе со складской записью.
func (s *Store) SeedProduct(ctx context.Context, product domain.ProductInfo, stock, lowStockThreshold int32) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.st.products[product.ID] = product
	s.st.inventory[product.ID] = domain.InventoryRecord{
		ID:                "inv-" + product.ID,
		ProductID:         product.ID,
		StockQuantity:     stock,
		LowStockThreshold: lowStockThreshold,
		LastUpdated:       time.Now().UTC(),
	}
	return nil
}

// SeedStaff добавляет сотрудника в справочник.
func (s *Store) SeedStaff(ctx context.Context, member domain.StaffInfo) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.st.staff[member.ID] = member
	return nil
}

// GetProduct реализует domain.ProductCatalog.
func (s *Store) GetProduct(ctx context.Context, id string) (domain.ProductInfo, error) {
	if err := s.acquire(ctx); err != nil {
		return domain.ProductInfo{}, err
	}
	defer s.release()

	product, ok := s.st.products[id]
	if !ok {
		return domain.ProductInfo{}, domain.ErrProductNotFound
	}
	return product, nil
}

// GetStaff реализует domain.StaffDirectory.
func (s *Store) GetStaff(ctx context.Context, id string) (domain.StaffInfo, error) {
	if err := s.acquire(ctx); err != nil {
		return domain.StaffInfo{}, err
	}
	defer s.release()

	member, ok := s.st.staff[id]
	if !ok {
		return domain.StaffInfo{}, domain.ErrStaffNotFound
	}
	return member, nil
}

var (
	_ domain.Store          = (*Store)(nil)
	_ domain.ProductCatalog = (*Store)(nil)
	_ domain.StaffDirectory = (*Store)(nil)
)
