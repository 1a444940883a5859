package dynamodb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nimburion/itemservice/pkg/store"
)

// marshalRecord converts a decoded JSON object into a DynamoDB item.
// Numbers keep their literal digits.
func marshalRecord(record store.Record) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(record))
	for name, value := range record {
		av, err := marshalValue(value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		item[name] = av
	}
	return item, nil
}

func marshalValue(value any) (types.AttributeValue, error) {
	switch v := value.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: v}, nil
	case json.Number:
		return &types.AttributeValueMemberN{Value: v.String()}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}, nil
	case store.Record:
		return marshalMap(v)
	case map[string]any:
		return marshalMap(v)
	case []any:
		list := make([]types.AttributeValue, 0, len(v))
		for i, elem := range v {
			av, err := marshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list = append(list, av)
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	default:
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported value of type %T: %w", v, err)
		}
		return av, nil
	}
}

func marshalMap(m map[string]any) (types.AttributeValue, error) {
	members := make(map[string]types.AttributeValue, len(m))
	for name, elem := range m {
		av, err := marshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		members[name] = av
	}
	return &types.AttributeValueMemberM{Value: members}, nil
}

// unmarshalRecord converts a DynamoDB item back into a JSON-ready record.
func unmarshalRecord(item map[string]types.AttributeValue) (store.Record, error) {
	record := make(store.Record, len(item))
	for name, av := range item {
		value, err := unmarshalValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		record[name] = value
	}
	return record, nil
}

func unmarshalValue(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return json.Number(v.Value), nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberB:
		return base64.StdEncoding.EncodeToString(v.Value), nil
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(v.Value))
		for name, elem := range v.Value {
			value, err := unmarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", name, err)
			}
			m[name] = value
		}
		return m, nil
	case *types.AttributeValueMemberL:
		list := make([]any, 0, len(v.Value))
		for i, elem := range v.Value {
			value, err := unmarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list = append(list, value)
		}
		return list, nil
	case *types.AttributeValueMemberSS:
		list := make([]any, 0, len(v.Value))
		for _, s := range v.Value {
			list = append(list, s)
		}
		return list, nil
	case *types.AttributeValueMemberNS:
		list := make([]any, 0, len(v.Value))
		for _, n := range v.Value {
			list = append(list, json.Number(n))
		}
		return list, nil
	case *types.AttributeValueMemberBS:
		list := make([]any, 0, len(v.Value))
		for _, b := range v.Value {
			list = append(list, base64.StdEncoding.EncodeToString(b))
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", av)
	}
}
