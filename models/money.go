package models

import "github.com/shopspring/decimal"

// Money - денежное поле API. Хранится как numeric(12,2), а в JSON всегда
// уходит строкой ровно с двумя знаками после запятой ("800.00", "0.00") -
// родной MarshalJSON у decimal отдает естественный масштаб числа ("800"),
// что ломает клиентов, ожидающих фиксированный формат.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}
