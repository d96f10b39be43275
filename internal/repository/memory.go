package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/bilal-alaabadi/ightt-b/internal/domain"
)

// MemoryStore keeps products and orders in maps behind one RWMutex. It backs
// tests and local development; production uses the postgres repositories.
type MemoryStore struct {
	mu          sync.RWMutex
	nextProdID  int
	nextOrderID int
	products    map[int]domain.Product
	orders      map[int]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextProdID:  1,
		nextOrderID: 1,
		products:    make(map[int]domain.Product),
		orders:      make(map[int]domain.Order),
	}
}

var (
	_ domain.ProductRepository = (*MemoryStore)(nil)
	_ domain.OrderRepository   = (*MemoryStore)(nil)
)

func (m *MemoryStore) CreateProduct(product *domain.Product) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = m.nextProdID
	m.nextProdID++
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	m.products[product.ID] = *product
	cp := *product
	return &cp, nil
}

func (m *MemoryStore) GetProductByID(id int) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStore) ListProducts() ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateProduct(product *domain.Product) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[product.ID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	m.products[product.ID] = *product
	cp := *product
	return &cp, nil
}

func (m *MemoryStore) DeleteProduct(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) CheckAvailability(productID, quantity int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	return p.Stock >= quantity, nil
}

// Reserve checks and decrements under a single lock hold, mirroring the
// conditional UPDATE of the postgres repository.
func (m *MemoryStore) Reserve(productID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < quantity {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Name:      p.Name,
			Requested: quantity,
			Available: p.Stock,
		}
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	m.products[productID] = p
	return nil
}

func (m *MemoryStore) Release(productID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		// stock cannot be restored for a deleted product
		return nil
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now().UTC()
	m.products[productID] = p
	return nil
}

func (m *MemoryStore) CreateOrder(order *domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderID == order.OrderID {
			return nil, domain.ErrDuplicateOrderID
		}
	}
	order.ID = m.nextOrderID
	m.nextOrderID++
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	m.orders[order.ID] = *order
	cp := *order
	return &cp, nil
}

func (m *MemoryStore) GetOrderByID(id int) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := o
	return &cp, nil
}

func (m *MemoryStore) GetOrderByOrderID(orderID string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.OrderID == orderID {
			cp := o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MemoryStore) GetOrderByCheckoutSession(sessionID string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.CheckoutSessionID != "" && o.CheckoutSessionID == sessionID {
			cp := o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MemoryStore) ListOrdersByEmail(email string) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range m.orders {
		if o.Email == email {
			out = append(out, o)
		}
	}
	sortOrdersByCreatedDesc(out)
	return out, nil
}

func (m *MemoryStore) ListAllOrders() ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sortOrdersByCreatedDesc(out)
	return out, nil
}

func (m *MemoryStore) UpdateOrderStatus(id int, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = o
	cp := o
	return &cp, nil
}

func (m *MemoryStore) AttachCheckoutSession(id int, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.CheckoutSessionID = sessionID
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = o
	return nil
}

func (m *MemoryStore) DeleteOrder(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

func sortOrdersByCreatedDesc(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
