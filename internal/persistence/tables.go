package persistence

import (
	"time"

	c "github.com/wonny/tradebook/internal/contracts"
)

// ⭐ SSOT: 엔티티 <-> 테이블 매핑은 여기서만 정의

// OrderTable maps contracts.Order
var OrderTable = &Table[c.Order]{
	Name: "orders",
	Columns: []Column[c.Order]{
		Int64Col("id", func(o *c.Order) *int64 { return &o.ID }).AsKey(),
		Int64Col("external_id", func(o *c.Order) *int64 { return &o.ExternalID }),
		Int64Col("account_id", func(o *c.Order) *int64 { return &o.AccountID }),
		Int64Col("security_id", func(o *c.Order) *int64 { return &o.SecurityID }),
		TextCol("security_code", func(o *c.Order) *string { return &o.SecurityCode }),
		Int64Col("broker_id", func(o *c.Order) *int64 { return &o.BrokerID }),
		EnumCol("side", func(o *c.Order) *c.Side { return &o.Side }),
		EnumCol("type", func(o *c.Order) *c.OrderType { return &o.Type }),
		FloatCol("requested_price", func(o *c.Order) *float64 { return &o.RequestedPrice }),
		FloatCol("price", func(o *c.Order) *float64 { return &o.Price }),
		FloatCol("limit_price", func(o *c.Order) *float64 { return &o.LimitPrice }),
		FloatCol("stop_price", func(o *c.Order) *float64 { return &o.StopPrice }),
		FloatCol("quantity", func(o *c.Order) *float64 { return &o.Quantity }),
		FloatCol("filled_quantity", func(o *c.Order) *float64 { return &o.FilledQuantity }),
		EnumCol("status", func(o *c.Order) *c.OrderStatus { return &o.Status }),
		Int64Col("parent_order_id", func(o *c.Order) *int64 { return &o.ParentOrderID }),
		EnumCol("time_in_force", func(o *c.Order) *c.TimeInForce { return &o.TimeInForce }),
		Int64Col("strategy_id", func(o *c.Order) *int64 { return &o.StrategyID }),
		TextCol("comment", func(o *c.Order) *string { return &o.Comment }),
		BoolCol("is_operational", func(o *c.Order) *bool { return &o.IsOperational }),
		EnumCol("trailing_type", func(o *c.Order) *c.TrailingType { return &o.Advanced.TrailingType }),
		FloatCol("trailing_value", func(o *c.Order) *float64 { return &o.Advanced.TrailingValue }),
		FloatCol("trailing_spread", func(o *c.Order) *float64 { return &o.Advanced.TrailingSpread }),
		NullTimeCol("expire_time", func(o *c.Order) *time.Time { return &o.Advanced.ExpireTime }),
		TimeCol("create_time", func(o *c.Order) *time.Time { return &o.CreateTime }),
		TimeCol("update_time", func(o *c.Order) *time.Time { return &o.UpdateTime }),
		NullTimeCol("external_create_time", func(o *c.Order) *time.Time { return &o.ExternalCreateTime }),
		NullTimeCol("external_update_time", func(o *c.Order) *time.Time { return &o.ExternalUpdateTime }),
	},
}

// TradeTable maps contracts.Trade
var TradeTable = &Table[c.Trade]{
	Name: "trades",
	Columns: []Column[c.Trade]{
		Int64Col("id", func(t *c.Trade) *int64 { return &t.ID }).AsKey(),
		Int64Col("external_trade_id", func(t *c.Trade) *int64 { return &t.ExternalTradeID }),
		Int64Col("external_order_id", func(t *c.Trade) *int64 { return &t.ExternalOrderID }),
		Int64Col("order_id", func(t *c.Trade) *int64 { return &t.OrderID }),
		Int64Col("account_id", func(t *c.Trade) *int64 { return &t.AccountID }),
		Int64Col("security_id", func(t *c.Trade) *int64 { return &t.SecurityID }),
		TextCol("security_code", func(t *c.Trade) *string { return &t.SecurityCode }),
		Int64Col("position_id", func(t *c.Trade) *int64 { return &t.PositionID }),
		EnumCol("side", func(t *c.Trade) *c.Side { return &t.Side }),
		FloatCol("price", func(t *c.Trade) *float64 { return &t.Price }),
		FloatCol("quantity", func(t *c.Trade) *float64 { return &t.Quantity }),
		FloatCol("fee", func(t *c.Trade) *float64 { return &t.Fee }),
		Int64Col("fee_asset_id", func(t *c.Trade) *int64 { return &t.FeeAssetID }),
		TextCol("fee_asset_code", func(t *c.Trade) *string { return &t.FeeAssetCode }),
		Int64Col("broker_id", func(t *c.Trade) *int64 { return &t.BrokerID }),
		BoolCol("is_coarse", func(t *c.Trade) *bool { return &t.IsCoarse }),
		BoolCol("is_operational", func(t *c.Trade) *bool { return &t.IsOperational }),
		TimeCol("time", func(t *c.Trade) *time.Time { return &t.Time }),
	},
}

// PositionTable maps contracts.Position
var PositionTable = &Table[c.Position]{
	Name: "positions",
	Columns: []Column[c.Position]{
		Int64Col("id", func(p *c.Position) *int64 { return &p.ID }).AsKey(),
		Int64Col("account_id", func(p *c.Position) *int64 { return &p.AccountID }),
		Int64Col("security_id", func(p *c.Position) *int64 { return &p.SecurityID }),
		TextCol("security_code", func(p *c.Position) *string { return &p.SecurityCode }),
		EnumCol("side", func(p *c.Position) *c.Side { return &p.Side }),
		FloatCol("quantity", func(p *c.Position) *float64 { return &p.Quantity }),
		FloatCol("price", func(p *c.Position) *float64 { return &p.Price }),
		FloatCol("notional", func(p *c.Position) *float64 { return &p.Notional }),
		FloatCol("long_quantity", func(p *c.Position) *float64 { return &p.Long.Quantity }),
		FloatCol("long_price", func(p *c.Position) *float64 { return &p.Long.Price }),
		FloatCol("long_notional", func(p *c.Position) *float64 { return &p.Long.Notional }),
		FloatCol("short_quantity", func(p *c.Position) *float64 { return &p.Short.Quantity }),
		FloatCol("short_price", func(p *c.Position) *float64 { return &p.Short.Price }),
		FloatCol("short_notional", func(p *c.Position) *float64 { return &p.Short.Notional }),
		Int64Col("start_order_id", func(p *c.Position) *int64 { return &p.StartOrderID }),
		Int64Col("end_order_id", func(p *c.Position) *int64 { return &p.EndOrderID }),
		Int64Col("start_trade_id", func(p *c.Position) *int64 { return &p.StartTradeID }),
		Int64Col("end_trade_id", func(p *c.Position) *int64 { return &p.EndTradeID }),
		IntCol("trade_count", func(p *c.Position) *int { return &p.TradeCount }),
		FloatCol("accumulated_fee", func(p *c.Position) *float64 { return &p.AccumulatedFee }),
		FloatCol("carried_quantity", func(p *c.Position) *float64 { return &p.CarriedQuantity }),
		TimeCol("create_time", func(p *c.Position) *time.Time { return &p.CreateTime }),
		TimeCol("update_time", func(p *c.Position) *time.Time { return &p.UpdateTime }),
		NullTimeCol("close_time", func(p *c.Position) *time.Time { return &p.CloseTime }),
	},
}

// AssetTable maps contracts.Asset; the key is (account_id, security_id)
var AssetTable = &Table[c.Asset]{
	Name: "assets",
	Columns: []Column[c.Asset]{
		Int64Col("id", func(a *c.Asset) *int64 { return &a.ID }),
		Int64Col("account_id", func(a *c.Asset) *int64 { return &a.AccountID }).AsKey(),
		Int64Col("security_id", func(a *c.Asset) *int64 { return &a.SecurityID }).AsKey(),
		TextCol("security_code", func(a *c.Asset) *string { return &a.SecurityCode }),
		FloatCol("quantity", func(a *c.Asset) *float64 { return &a.Quantity }),
		FloatCol("locked_quantity", func(a *c.Asset) *float64 { return &a.LockedQuantity }),
		TimeCol("create_time", func(a *c.Asset) *time.Time { return &a.CreateTime }),
		TimeCol("update_time", func(a *c.Asset) *time.Time { return &a.UpdateTime }),
	},
}

// ResidualTable maps contracts.Residual; one row per (account, base security)
var ResidualTable = &Table[c.Residual]{
	Name: "residuals",
	Columns: []Column[c.Residual]{
		Int64Col("account_id", func(r *c.Residual) *int64 { return &r.AccountID }).AsKey(),
		Int64Col("base_security_id", func(r *c.Residual) *int64 { return &r.BaseSecurityID }).AsKey(),
		Int64Col("security_id", func(r *c.Residual) *int64 { return &r.SecurityID }),
		FloatCol("quantity", func(r *c.Residual) *float64 { return &r.Quantity }),
		FloatCol("price", func(r *c.Residual) *float64 { return &r.Price }),
		Int64Col("source_position_id", func(r *c.Residual) *int64 { return &r.SourcePositionID }),
		TimeCol("time", func(r *c.Residual) *time.Time { return &r.Time }),
	},
}

// SecurityTable maps contracts.Security
var SecurityTable = &Table[c.Security]{
	Name: "securities",
	Columns: []Column[c.Security]{
		Int64Col("id", func(s *c.Security) *int64 { return &s.ID }).AsKey(),
		TextCol("code", func(s *c.Security) *string { return &s.Code }),
		TextCol("name", func(s *c.Security) *string { return &s.Name }),
		TextCol("exchange", func(s *c.Security) *string { return &s.Exchange }),
		Int64Col("base_id", func(s *c.Security) *int64 { return &s.BaseID }),
		Int64Col("quote_id", func(s *c.Security) *int64 { return &s.QuoteID }),
		FloatCol("min_quantity", func(s *c.Security) *float64 { return &s.MinQuantity }),
		FloatCol("min_notional", func(s *c.Security) *float64 { return &s.MinNotional }),
		Int32Col("price_precision", func(s *c.Security) *int32 { return &s.PricePrecision }),
		Int32Col("quantity_precision", func(s *c.Security) *int32 { return &s.QuantityPrecision }),
	},
}

// indexes are created by Migrate after the tables
var indexes = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_external ON trades (external_trade_id)",
	"CREATE INDEX IF NOT EXISTS idx_trades_order ON trades (order_id)",
	"CREATE INDEX IF NOT EXISTS idx_orders_external ON orders (external_id)",
	"CREATE INDEX IF NOT EXISTS idx_positions_open ON positions (account_id, security_id, close_time)",
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_securities_code ON securities (code)",
}
