package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/storefront/internal/domain"
	"github.com/victornm/storefront/internal/errors"
)

// maxExactInteger is the largest magnitude a double holds without rounding
// integers.
const maxExactInteger = 1 << 53

const (
	QuizResultServiceName = "storefront.quizresult.v1.QuizResultService"

	saveQuizResultMethod  = "/" + QuizResultServiceName + "/SaveQuizResult"
	listQuizResultsMethod = "/" + QuizResultServiceName + "/ListQuizResults"
)

// QuizResultServiceServer carries quiz results as protobuf well-known types:
// requests are Structs with a "user_id" string and, when saving, a "result"
// object. Struct numbers are doubles, so integers are exact only up to 2^53:
// SaveQuizResult rejects larger ones and ListQuizResults rounds stored values
// beyond that range. The HTTP API keeps them exact.
type QuizResultServiceServer interface {
	SaveQuizResult(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListQuizResults(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

var QuizResultServiceDesc = grpc.ServiceDesc{
	ServiceName: QuizResultServiceName,
	HandlerType: (*QuizResultServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SaveQuizResult", Handler: saveQuizResultHandler},
		{MethodName: "ListQuizResults", Handler: listQuizResultsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/quizresult/v1/quizresult.proto",
}

func RegisterQuizResultServiceServer(s grpc.ServiceRegistrar, srv QuizResultServiceServer) {
	s.RegisterService(&QuizResultServiceDesc, srv)
}

func saveQuizResultHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QuizResultServiceServer).SaveQuizResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: saveQuizResultMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QuizResultServiceServer).SaveQuizResult(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listQuizResultsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QuizResultServiceServer).ListQuizResults(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listQuizResultsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QuizResultServiceServer).ListQuizResults(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func (a *API) SaveQuizResult(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var payload json.RawMessage
	if v, ok := req.GetFields()["result"]; ok {
		if err := checkExactNumbers("result", v); err != nil {
			return nil, err
		}

		b, err := protojson.Marshal(v)
		if err != nil {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("result is not valid JSON"),
				errors.WithCause(err),
			)
		}
		payload = b
	}

	r, err := a.qrs.Save(ctx, req.GetFields()["user_id"].GetStringValue(), payload)
	if err != nil {
		return nil, err
	}

	return toStruct(r)
}

func (a *API) ListQuizResults(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	results, err := a.qrs.Get(ctx, req.GetFields()["user_id"].GetStringValue())
	if err != nil {
		return nil, err
	}

	l := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(results))}
	for i := range results {
		s, err := toStruct(&results[i])
		if err != nil {
			return nil, err
		}
		l.Values = append(l.Values, structpb.NewStructValue(s))
	}

	return l, nil
}

// checkExactNumbers rejects numbers the sender's double may already have
// rounded.
func checkExactNumbers(path string, v *structpb.Value) error {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.Abs(k.NumberValue) > maxExactInteger {
			return errors.InvalidArgument("%s: %v is outside the exact integer range of ±2^53", path, k.NumberValue)
		}
	case *structpb.Value_StructValue:
		for name, f := range k.StructValue.GetFields() {
			if err := checkExactNumbers(path+"."+name, f); err != nil {
				return err
			}
		}
	case *structpb.Value_ListValue:
		for i, e := range k.ListValue.GetValues() {
			if err := checkExactNumbers(fmt.Sprintf("%s[%d]", path, i), e); err != nil {
				return err
			}
		}
	}

	return nil
}

func toStruct(r *domain.QuizResult) (*structpb.Struct, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Internal(err)
	}

	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, errors.Internal(err)
	}

	return s, nil
}

// Client calls QuizResultService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SaveQuizResult(ctx context.Context, userID string, result map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{
		"user_id": userID,
		"result":  result,
	})
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithCause(err))
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, saveQuizResultMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListQuizResults(ctx context.Context, userID string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	req, err := structpb.NewStruct(map[string]any{"user_id": userID})
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithCause(err))
	}

	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, listQuizResultsMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
