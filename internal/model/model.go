// Package model содержит доменные сущности сервиса совместных покупок.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant описывает обязательство пользователя выкупить количество товара в пуле.
type Participant struct {
	UserID   string `json:"userId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

// Pool представляет пул совместной покупки одного товара.
//
// TotalQuantity и DiscountTier производные: пересчитываются при каждой мутации
// и никогда не задаются вызывающей стороной напрямую.
type Pool struct {
	ProductID     string        `json:"productId" validate:"required"`
	Participants  []Participant `json:"participants" validate:"dive"`
	TotalQuantity int           `json:"totalQuantity" validate:"gte=0"`
	DiscountTier  int           `json:"discountTier" validate:"gte=0,lte=100"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// EmptyPool возвращает ленивое значение по умолчанию для товара без активности.
func EmptyPool(productID string) Pool {
	return Pool{
		ProductID:    productID,
		Participants: []Participant{},
	}
}

// Has сообщает, участвует ли пользователь в пуле.
func (p Pool) Has(userID string) bool {
	for _, participant := range p.Participants {
		if participant.UserID == userID {
			return true
		}
	}
	return false
}

// NotificationType описывает тип уведомления.
type NotificationType string

// NotificationPoolMaxTier отправляется администраторам при первом достижении максимального уровня скидки.
const NotificationPoolMaxTier NotificationType = "pool_max_tier"

// Notification описывает уведомление для одного получателя.
type Notification struct {
	ID              string           `json:"id" validate:"required,uuid"`
	Type            NotificationType `json:"type" validate:"required"`
	ProductID       string           `json:"productId" validate:"required"`
	RecipientUserID string           `json:"recipientUserId" validate:"required"`
	Message         string           `json:"message" validate:"required"`
	Read            bool             `json:"read"`
	CreatedAt       time.Time        `json:"createdAt" validate:"required"`
	ReadAt          *time.Time       `json:"readAt,omitempty"`
}

// User представляет профиль зарегистрированного пользователя.
type User struct {
	ID           string    `json:"id" validate:"required"`
	Email        string    `json:"email" validate:"required,email"`
	Name         string    `json:"name"`
	IsAdmin      bool      `json:"isAdmin"`
	PasswordHash []byte    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Product описывает товар каталога.
type Product struct {
	ID                string          `json:"id" validate:"required"`
	Name              string          `json:"name" validate:"required"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	Category          string          `json:"category"`
	Image             string          `json:"image"`
	Stock             int             `json:"stock" validate:"gte=0"`
	SuperSaverEnabled bool            `json:"superSaverEnabled"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         *time.Time      `json:"updatedAt,omitempty"`
}

// ParticipantView описывает участника пула, дополненного отображаемыми данными пользователя.
type ParticipantView struct {
	UserID   string `json:"userId"`
	Quantity int    `json:"quantity"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// PoolView описывает пул, дополненный данными о товаре и участниках.
type PoolView struct {
	ProductID       string            `json:"productId"`
	ProductName     string            `json:"productName"`
	UnitPrice       *decimal.Decimal  `json:"unitPrice,omitempty"`
	DiscountedPrice *decimal.Decimal  `json:"discountedPrice,omitempty"`
	Participants    []ParticipantView `json:"participants"`
	TotalQuantity   int               `json:"totalQuantity"`
	DiscountTier    int               `json:"discountTier"`
	NextTier        *NextTier         `json:"nextTier,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// NextTier описывает ближайший недостигнутый уровень скидки пула.
// Отсутствует, если пул уже на максимальном уровне.
type NextTier struct {
	Percent       int `json:"percent"`
	MinQuantity   int `json:"minQuantity"`
	UnitsRequired int `json:"unitsRequired"`
}

// CartItem описывает позицию корзины.
type CartItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// Cart представляет корзину пользователя. Сохраняется целиком при каждом изменении.
type Cart struct {
	UserID    string     `json:"userId" validate:"required"`
	Items     []CartItem `json:"items" validate:"dive"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartLine описывает позицию корзины с данными товара.
// Цены отсутствуют, если товар удалён из каталога.
type CartLine struct {
	ProductID string           `json:"productId"`
	Name      string           `json:"name"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
	LineTotal *decimal.Decimal `json:"lineTotal,omitempty"`
}

// CartView описывает корзину с итоговой суммой по товарам каталога.
type CartView struct {
	Items     []CartLine      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

// Analytics содержит сводные показатели для администратора.
type Analytics struct {
	TotalProducts     int `json:"totalProducts"`
	TotalUsers        int `json:"totalUsers"`
	ActiveGroups      int `json:"activeGroups"`
	MaxTierGroups     int `json:"maxTierGroups"`
	CommittedQuantity int `json:"committedQuantity"`
}
