package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// RegisterProductLineRequest registers a new stockable variant
type RegisterProductLineRequest struct {
	StoreID          uuid.UUID  `json:"store_id"`
	ItemID           uuid.UUID  `json:"item_id"`
	Condition        string     `json:"condition"`
	SpecialtyState   string     `json:"specialty_state"`
	ConsignorID      *uuid.UUID `json:"consignor_id"`
	ManagementNumber string     `json:"management_number"`
	CostMode         string     `json:"cost_mode"` // Empty uses the service default
	Policy           string     `json:"policy"`    // Empty uses the service default
}

// ReceiveRequest stocks units bought in at one or more unit costs
type ReceiveRequest struct {
	ProductLineID uuid.UUID           `json:"product_line_id"`
	Portions      []stock.CostPortion `json:"portions"`
	SourceRef     string              `json:"source_ref"`
	Description   string              `json:"description"`
}

// RemoveRequest takes units out of stock for a sale or a loss
type RemoveRequest struct {
	ProductLineID uuid.UUID `json:"product_line_id"`
	Quantity      int64     `json:"quantity"`
	SourceRef     string    `json:"source_ref"`
	Description   string    `json:"description"`
}

// AdjustRequest corrects a counter by an operator. A positive Delta adds
// units at UnitCost; a negative Delta removes units by the line's policy.
type AdjustRequest struct {
	ProductLineID uuid.UUID `json:"product_line_id"`
	Delta         int64     `json:"delta"`
	UnitCost      int64     `json:"unit_cost"`
	SourceRef     string    `json:"source_ref"`
	Reason        string    `json:"reason"`
}

// TargetRequest names a target product line and the units it receives
type TargetRequest struct {
	ProductLineID uuid.UUID `json:"product_line_id"`
	Quantity      int64     `json:"quantity"`
}

// OpenBoxRequest opens boxes into packs
type OpenBoxRequest struct {
	BoxID       uuid.UUID       `json:"box_id"`
	BoxCount    int64           `json:"box_count"`
	Packs       []TargetRequest `json:"packs"`
	SourceRef   string          `json:"source_ref"`
	Description string          `json:"description"`
}

// OpenCartonRequest opens cartons into boxes
type OpenCartonRequest struct {
	CartonID    uuid.UUID     `json:"carton_id"`
	CartonCount int64         `json:"carton_count"`
	Box         TargetRequest `json:"box"`
	SourceRef   string        `json:"source_ref"`
	Description string        `json:"description"`
}

// RestockRequest rebuilds a coarser unit from finer units
type RestockRequest struct {
	SourceID    uuid.UUID     `json:"source_id"`
	SourceCount int64         `json:"source_count"`
	Target      TargetRequest `json:"target"`
	SourceRef   string        `json:"source_ref"`
	Description string        `json:"description"`
}

// ProductLineResponse represents a product line in responses
type ProductLineResponse struct {
	ID               uuid.UUID  `json:"id"`
	StoreID          uuid.UUID  `json:"store_id"`
	ItemID           uuid.UUID  `json:"item_id"`
	Condition        string     `json:"condition"`
	SpecialtyState   string     `json:"specialty_state,omitempty"`
	ConsignorID      *uuid.UUID `json:"consignor_id,omitempty"`
	ManagementNumber string     `json:"management_number,omitempty"`
	Quantity         int64      `json:"quantity"`
	CostMode         string     `json:"cost_mode"`
	Policy           string     `json:"policy"`
	Version          int        `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CostLayerResponse represents a live cost layer in responses
type CostLayerResponse struct {
	ID              uuid.UUID `json:"id"`
	UnitCost        int64     `json:"unit_cost"`
	ResidualCost    int64     `json:"residual_cost"`
	Quantity        int64     `json:"quantity"`
	InitialQuantity int64     `json:"initial_quantity"`
	Value           int64     `json:"value"`
	State           string    `json:"state"`
	SourceRef       string    `json:"source_ref"`
	CreatedAt       time.Time `json:"created_at"`
}

// MovementResponse represents a stock movement record in responses
type MovementResponse struct {
	ID           uuid.UUID `json:"id"`
	Kind         string    `json:"kind"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	CostDelta    int64     `json:"cost_delta"`
	SourceRef    string    `json:"source_ref"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// LedgerResponse is the cost position and history of one product line
type LedgerResponse struct {
	ProductLine     ProductLineResponse `json:"product_line"`
	Layers          []CostLayerResponse `json:"layers"`
	Movements       []MovementResponse  `json:"movements"`
	MovementCount   int64               `json:"movement_count"`
	TotalUnits      int64               `json:"total_units"`
	TotalValue      int64               `json:"total_value"`
	AverageUnitCost decimal.Decimal     `json:"average_unit_cost"`
}

// ToProductLineResponse converts a domain ProductLine to ProductLineResponse
func ToProductLineResponse(line *stock.ProductLine) ProductLineResponse {
	return ProductLineResponse{
		ID:               line.ID,
		StoreID:          line.StoreID,
		ItemID:           line.ItemID,
		Condition:        line.Condition,
		SpecialtyState:   line.SpecialtyState,
		ConsignorID:      line.ConsignorID,
		ManagementNumber: line.ManagementNumber,
		Quantity:         line.Quantity,
		CostMode:         line.CostMode.String(),
		Policy:           line.Policy.String(),
		Version:          line.Version,
		CreatedAt:        line.CreatedAt,
		UpdatedAt:        line.UpdatedAt,
	}
}

// ToCostLayerResponses converts domain layers to responses, in the order given
func ToCostLayerResponses(layers []stock.CostLayer) []CostLayerResponse {
	responses := make([]CostLayerResponse, len(layers))
	for i := range layers {
		l := &layers[i]
		responses[i] = CostLayerResponse{
			ID:              l.ID,
			UnitCost:        l.UnitCost,
			ResidualCost:    l.ResidualCost,
			Quantity:        l.Quantity,
			InitialQuantity: l.InitialQuantity,
			Value:           l.Value(),
			State:           string(l.State()),
			SourceRef:       l.SourceRef,
			CreatedAt:       l.CreatedAt,
		}
	}
	return responses
}

// ToMovementResponses converts domain movements to responses
func ToMovementResponses(movements []stock.StockMovement) []MovementResponse {
	responses := make([]MovementResponse, len(movements))
	for i := range movements {
		m := &movements[i]
		responses[i] = MovementResponse{
			ID:           m.ID,
			Kind:         m.Kind.String(),
			Delta:        m.Delta,
			BalanceAfter: m.BalanceAfter,
			CostDelta:    m.CostDelta,
			SourceRef:    m.SourceRef,
			Description:  m.Description,
			CreatedAt:    m.CreatedAt,
		}
	}
	return responses
}

// averageUnitCost returns value / units to four decimal places, or zero when empty
func averageUnitCost(units, value int64) decimal.Decimal {
	if units == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(value).DivRound(decimal.NewFromInt(units), 4)
}
