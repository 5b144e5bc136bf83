package grpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"marketdash/pkg/models"
)

func generateSubscriberID() string {
	return "grpc-" + uuid.NewString()
}

// toStruct converts any JSON-encodable value into a Struct, so gRPC payloads
// keep the HTTP API's field names.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// symbolsField reads an optional list of symbols from a request.
func symbolsField(req *structpb.Struct) []string {
	list := req.GetFields()["symbols"].GetListValue()
	if list == nil {
		return nil
	}

	var symbols []string
	for _, v := range list.GetValues() {
		if sym := strings.ToUpper(strings.TrimSpace(v.GetStringValue())); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

func filterQuotes(quotes []models.Quote, symbols []string) []models.Quote {
	if len(symbols) == 0 {
		return quotes
	}
	out := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		if q, ok := models.FindQuote(quotes, sym); ok {
			out = append(out, q)
		}
	}
	return out
}
