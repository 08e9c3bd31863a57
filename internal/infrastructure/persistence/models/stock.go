package models

import (
	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/stock"
)

// ProductLineModel is the persistence model for the ProductLine aggregate root.
type ProductLineModel struct {
	AggregateModel
	StoreID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_product_line_store_item"`
	ItemID           uuid.UUID  `gorm:"type:uuid;not null;index:idx_product_line_store_item"`
	Condition        string     `gorm:"type:varchar(50);not null"`
	SpecialtyState   string     `gorm:"type:varchar(50);not null;default:''"`
	ConsignorID      *uuid.UUID `gorm:"type:uuid;index"`
	ManagementNumber string     `gorm:"type:varchar(100);not null;default:''"`
	Quantity         int64      `gorm:"not null;default:0"`
	CostMode         string     `gorm:"type:varchar(20);not null"`
	Policy           string     `gorm:"type:varchar(30);not null"`
}

// TableName returns the table name for GORM
func (ProductLineModel) TableName() string {
	return "product_lines"
}

// ToDomain converts the persistence model to a domain ProductLine.
func (m *ProductLineModel) ToDomain() *stock.ProductLine {
	return &stock.ProductLine{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		StoreID:           m.StoreID,
		ItemID:            m.ItemID,
		Condition:         m.Condition,
		SpecialtyState:    m.SpecialtyState,
		ConsignorID:       m.ConsignorID,
		ManagementNumber:  m.ManagementNumber,
		Quantity:          m.Quantity,
		CostMode:          stock.CostMode(m.CostMode),
		Policy:            stock.ConsumptionPolicy(m.Policy),
	}
}

// FromDomain populates the persistence model from a domain ProductLine.
func (m *ProductLineModel) FromDomain(p *stock.ProductLine) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.StoreID = p.StoreID
	m.ItemID = p.ItemID
	m.Condition = p.Condition
	m.SpecialtyState = p.SpecialtyState
	m.ConsignorID = p.ConsignorID
	m.ManagementNumber = p.ManagementNumber
	m.Quantity = p.Quantity
	m.CostMode = string(p.CostMode)
	m.Policy = string(p.Policy)
}

// ProductLineModelFromDomain creates a new persistence model from a domain ProductLine.
func ProductLineModelFromDomain(p *stock.ProductLine) *ProductLineModel {
	m := &ProductLineModel{}
	m.FromDomain(p)
	return m
}

// CostLayerModel is the persistence model for the CostLayer entity.
type CostLayerModel struct {
	BaseModel
	ProductLineID   uuid.UUID `gorm:"type:uuid;not null;index"`
	UnitCost        int64     `gorm:"not null"`
	Quantity        int64     `gorm:"not null"`
	InitialQuantity int64     `gorm:"not null"`
	ResidualCost    int64     `gorm:"not null;default:0"`
	SourceRef       string    `gorm:"type:varchar(100);not null;default:''"`
}

// TableName returns the table name for GORM
func (CostLayerModel) TableName() string {
	return "cost_layers"
}

// ToDomain converts the persistence model to a domain CostLayer.
func (m *CostLayerModel) ToDomain() *stock.CostLayer {
	return &stock.CostLayer{
		BaseEntity:      m.BaseModel.ToDomain(),
		ProductLineID:   m.ProductLineID,
		UnitCost:        m.UnitCost,
		Quantity:        m.Quantity,
		InitialQuantity: m.InitialQuantity,
		ResidualCost:    m.ResidualCost,
		SourceRef:       m.SourceRef,
	}
}

// FromDomain populates the persistence model from a domain CostLayer.
func (m *CostLayerModel) FromDomain(l *stock.CostLayer) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.ProductLineID = l.ProductLineID
	m.UnitCost = l.UnitCost
	m.Quantity = l.Quantity
	m.InitialQuantity = l.InitialQuantity
	m.ResidualCost = l.ResidualCost
	m.SourceRef = l.SourceRef
}

// CostLayerModelFromDomain creates a new persistence model from a domain CostLayer.
func CostLayerModelFromDomain(l *stock.CostLayer) *CostLayerModel {
	m := &CostLayerModel{}
	m.FromDomain(l)
	return m
}

// StockMovementModel is the persistence model for the StockMovement audit record.
type StockMovementModel struct {
	BaseModel
	ProductLineID uuid.UUID `gorm:"type:uuid;not null;index"`
	Delta         int64     `gorm:"not null"`
	BalanceAfter  int64     `gorm:"not null"`
	CostDelta     int64     `gorm:"not null"`
	Kind          string    `gorm:"type:varchar(30);not null;index"`
	SourceRef     string    `gorm:"type:varchar(100);not null;default:'';index"`
	Description   string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *stock.StockMovement {
	return &stock.StockMovement{
		BaseEntity:    m.BaseModel.ToDomain(),
		ProductLineID: m.ProductLineID,
		Delta:         m.Delta,
		BalanceAfter:  m.BalanceAfter,
		CostDelta:     m.CostDelta,
		Kind:          stock.MovementKind(m.Kind),
		SourceRef:     m.SourceRef,
		Description:   m.Description,
	}
}

// FromDomain populates the persistence model from a domain StockMovement.
func (m *StockMovementModel) FromDomain(s *stock.StockMovement) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.ProductLineID = s.ProductLineID
	m.Delta = s.Delta
	m.BalanceAfter = s.BalanceAfter
	m.CostDelta = s.CostDelta
	m.Kind = string(s.Kind)
	m.SourceRef = s.SourceRef
	m.Description = s.Description
}

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(s *stock.StockMovement) *StockMovementModel {
	m := &StockMovementModel{}
	m.FromDomain(s)
	return m
}

// AllModels lists every table managed by this package, for AutoMigrate in tests.
func AllModels() []any {
	return []any{
		&ProductLineModel{},
		&CostLayerModel{},
		&StockMovementModel{},
	}
}
