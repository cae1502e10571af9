package models

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Collection names used both as store tables and as RecordID tables.
const (
	CustodianTable   = "custodians"
	PortfolioTable   = "portfolios"
	AccountTable     = "accounts"
	PositionTable    = "positions"
	TransactionTable = "transactions"
)

// cborRecordIDTag is the CBOR tag SurrealDB uses for record identifiers.
const cborRecordIDTag = 8

func marshalCBORID(table string, id uuid.UUID) ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  cborRecordIDTag,
		Content: []any{table, id.String()},
	})
}

// unmarshalCBORID accepts either a tagged RecordID or a bare UUID string, so
// IDs round-trip regardless of whether the store returned a record link or a
// plain field value.
func unmarshalCBORID(data []byte, table string, dst *uuid.UUID) error {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(data, &tag); err == nil && tag.Number == cborRecordIDTag {
		var parts []any
		if err := cbor.Unmarshal(tag.Content, &parts); err != nil {
			return fmt.Errorf("malformed %s record id: %w", table, err)
		}
		if len(parts) != 2 {
			return fmt.Errorf("malformed %s record id: want 2 elements, got %d", table, len(parts))
		}
		s, ok := parts[1].(string)
		if !ok {
			return fmt.Errorf("malformed %s record id: non-string key", table)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("malformed %s record id: %w", table, err)
		}
		*dst = id
		return nil
	}

	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cannot decode %s id: %w", table, err)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("cannot decode %s id: %w", table, err)
	}
	*dst = id
	return nil
}

func unmarshalJSONID(data []byte, dst *uuid.UUID) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*dst = id
	return nil
}

// CustodianID is a typed ID for custodians.
type CustodianID struct {
	uuid uuid.UUID
}

func NewCustodianID() CustodianID {
	return CustodianID{uuid: uuid.New()}
}

func ParseCustodianID(s string) (CustodianID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CustodianID{}, fmt.Errorf("invalid custodian ID: %w", err)
	}
	return CustodianID{uuid: id}, nil
}

func (c CustodianID) UUID() uuid.UUID { return c.uuid }
func (c CustodianID) String() string  { return c.uuid.String() }
func (c CustodianID) IsZero() bool    { return c.uuid == uuid.Nil }

func (c CustodianID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: CustodianTable, ID: c.uuid.String()}
}

func (c CustodianID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.uuid.String())
}

func (c *CustodianID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &c.uuid)
}

func (c CustodianID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(CustodianTable, c.uuid)
}

func (c *CustodianID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, CustodianTable, &c.uuid)
}

// PortfolioID is a typed ID for portfolios.
type PortfolioID struct {
	uuid uuid.UUID
}

func NewPortfolioID() PortfolioID {
	return PortfolioID{uuid: uuid.New()}
}

func ParsePortfolioID(s string) (PortfolioID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PortfolioID{}, fmt.Errorf("invalid portfolio ID: %w", err)
	}
	return PortfolioID{uuid: id}, nil
}

func (p PortfolioID) UUID() uuid.UUID { return p.uuid }
func (p PortfolioID) String() string  { return p.uuid.String() }
func (p PortfolioID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p PortfolioID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: PortfolioTable, ID: p.uuid.String()}
}

func (p PortfolioID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PortfolioID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &p.uuid)
}

func (p PortfolioID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(PortfolioTable, p.uuid)
}

func (p *PortfolioID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, PortfolioTable, &p.uuid)
}

// AccountID is a typed ID for accounts.
type AccountID struct {
	uuid uuid.UUID
}

func NewAccountID() AccountID {
	return AccountID{uuid: uuid.New()}
}

func ParseAccountID(s string) (AccountID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid account ID: %w", err)
	}
	return AccountID{uuid: id}, nil
}

func (a AccountID) UUID() uuid.UUID { return a.uuid }
func (a AccountID) String() string  { return a.uuid.String() }
func (a AccountID) IsZero() bool    { return a.uuid == uuid.Nil }

func (a AccountID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: AccountTable, ID: a.uuid.String()}
}

func (a AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.uuid.String())
}

func (a *AccountID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &a.uuid)
}

func (a AccountID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(AccountTable, a.uuid)
}

func (a *AccountID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, AccountTable, &a.uuid)
}

// PositionID is a typed ID for positions.
type PositionID struct {
	uuid uuid.UUID
}

func NewPositionID() PositionID {
	return PositionID{uuid: uuid.New()}
}

func ParsePositionID(s string) (PositionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PositionID{}, fmt.Errorf("invalid position ID: %w", err)
	}
	return PositionID{uuid: id}, nil
}

func (p PositionID) UUID() uuid.UUID { return p.uuid }
func (p PositionID) String() string  { return p.uuid.String() }
func (p PositionID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p PositionID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: PositionTable, ID: p.uuid.String()}
}

func (p PositionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PositionID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &p.uuid)
}

func (p PositionID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(PositionTable, p.uuid)
}

func (p *PositionID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, PositionTable, &p.uuid)
}

// TransactionID is a typed ID for transactions.
type TransactionID struct {
	uuid uuid.UUID
}

func NewTransactionID() TransactionID {
	return TransactionID{uuid: uuid.New()}
}

func ParseTransactionID(s string) (TransactionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TransactionID{}, fmt.Errorf("invalid transaction ID: %w", err)
	}
	return TransactionID{uuid: id}, nil
}

func (t TransactionID) UUID() uuid.UUID { return t.uuid }
func (t TransactionID) String() string  { return t.uuid.String() }
func (t TransactionID) IsZero() bool    { return t.uuid == uuid.Nil }

func (t TransactionID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: TransactionTable, ID: t.uuid.String()}
}

func (t TransactionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.uuid.String())
}

func (t *TransactionID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &t.uuid)
}

func (t TransactionID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TransactionTable, t.uuid)
}

func (t *TransactionID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TransactionTable, &t.uuid)
}
