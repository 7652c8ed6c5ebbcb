package payment

import "strings"

// ResultDelimiter separates the positional subfields of a terminal response
const ResultDelimiter = "¶"

// resultFieldCount is the number of positional subfields in a terminal response
const resultFieldCount = 15

// Result is the parsed authorization outcome reported by the terminal.
// Fields are nullable: a subfield missing from the payload stays nil.
type Result struct {
	ResponseCode     *string `json:"responseCode" bson:"response_code"`
	AuthCode         *string `json:"authCode" bson:"auth_code"`
	CardLast4        *string `json:"cardLast4" bson:"card_last4"`
	Reference        *string `json:"reference" bson:"reference"`
	CardBrand        *string `json:"cardBrand" bson:"card_brand"`
	Message          *string `json:"message" bson:"message"`
	Date             *string `json:"date" bson:"date"`
	Time             *string `json:"time" bson:"time"`
	MerchantID       *string `json:"merchantId" bson:"merchant_id"`
	TerminalID       *string `json:"terminalId" bson:"terminal_id"`
	GatewayInvoiceID *string `json:"gatewayInvoiceId" bson:"gateway_invoice_id"`
	BatchData        *string `json:"batchData" bson:"batch_data"`
	Amount           *string `json:"amount" bson:"amount"`
	EMVData          *string `json:"emvData" bson:"emv_data"`
	LotNumber        *string `json:"lotNumber" bson:"lot_number"`
}

// positions returns the fields in wire order
func (r *Result) positions() [resultFieldCount]**string {
	return [resultFieldCount]**string{
		&r.ResponseCode,
		&r.AuthCode,
		&r.CardLast4,
		&r.Reference,
		&r.CardBrand,
		&r.Message,
		&r.Date,
		&r.Time,
		&r.MerchantID,
		&r.TerminalID,
		&r.GatewayInvoiceID,
		&r.BatchData,
		&r.Amount,
		&r.EMVData,
		&r.LotNumber,
	}
}

// ParseResult maps a terminal response payload onto a Result by position.
// Missing or empty subfields become nil and extra subfields are ignored.
func ParseResult(raw string) *Result {
	result := &Result{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return result
	}

	parts := strings.Split(raw, ResultDelimiter)
	for i, field := range result.positions() {
		if i >= len(parts) {
			break
		}
		value := strings.TrimSpace(parts[i])
		if value == "" {
			continue
		}
		*field = &value
	}
	return result
}

// String renders the result back into its positional wire form
func (r *Result) String() string {
	parts := make([]string, 0, resultFieldCount)
	for _, field := range r.positions() {
		if *field == nil {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, **field)
	}
	return strings.Join(parts, ResultDelimiter)
}

// Approved reports whether the terminal answered with the "00" approval code
func (r *Result) Approved() bool {
	return r != nil && r.ResponseCode != nil && *r.ResponseCode == "00"
}

// Clone returns a deep copy of the result
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	clone := &Result{}
	src := r.positions()
	for i, field := range clone.positions() {
		if *src[i] == nil {
			continue
		}
		value := **src[i]
		*field = &value
	}
	return clone
}
