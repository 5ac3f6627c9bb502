// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The indexer package exposes an in-memory ordered index over gRPC.  Keys are
// strings and values are arbitrary JSON-like values (structpb.Value), which
// are serialized before they are handed to the index.
package indexer

import (
	"context"

	"github.com/9rum/ordtree/internal/index"
	"github.com/golang/glog"
	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	keyField   = "key"
	valueField = "value"
)

// indexServer implements the server API for Index service.
type indexServer struct {
	UnimplementedIndexServer
	index index.Index
}

// NewIndexServer creates a new index server backed by the given index.
func NewIndexServer(index index.Index) IndexServer {
	return &indexServer{index: index}
}

// Insert stores the value under the given key, overwriting any previous value.
// The request carries the key as a string field and the value as an arbitrary
// field of the struct.
func (s *indexServer) Insert(ctx context.Context, in *structpb.Struct) (*empty.Empty, error) {
	key, err := keyOf(in)
	if err != nil {
		return nil, err
	}
	value := in.GetFields()[valueField]
	if value == nil {
		value = structpb.NewNullValue()
	}
	data, err := proto.Marshal(value)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if _, replaced := s.index.Insert(key, data); replaced {
		glog.V(1).Infof("Insert replaced key: %q", key)
	} else {
		glog.V(1).Infof("Insert added key: %q", key)
	}

	return new(empty.Empty), nil
}

// keyOf extracts the key from the given insert request.
func keyOf(in *structpb.Struct) (string, error) {
	field, ok := in.GetFields()[keyField]
	if !ok {
		return "", status.Error(codes.InvalidArgument, "missing key")
	}
	key, ok := field.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Error(codes.InvalidArgument, "key must be a string")
	}
	return key.StringValue, nil
}

// Get looks up the value stored under the given key.
func (s *indexServer) Get(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Value, error) {
	glog.V(1).Infof("Get called with key: %q", in.GetValue())

	data, ok := s.index.Get(in.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "key %q not found", in.GetValue())
	}
	return decode(data)
}

// Remove deletes the given key and returns the value it held.
func (s *indexServer) Remove(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Value, error) {
	glog.V(1).Infof("Remove called with key: %q", in.GetValue())

	data, ok := s.index.Remove(in.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "key %q not found", in.GetValue())
	}
	return decode(data)
}

// decode deserializes a value stored in the index.
func decode(data []byte) (*structpb.Value, error) {
	value := new(structpb.Value)
	if err := proto.Unmarshal(data, value); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return value, nil
}

// Len returns the number of keys in the index.
func (s *indexServer) Len(ctx context.Context, in *empty.Empty) (*wrapperspb.Int64Value, error) {
	return wrapperspb.Int64(int64(s.index.Len())), nil
}

// Scan returns every entry in ascending key order as a list of structs with
// a key and a value field.
func (s *indexServer) Scan(ctx context.Context, in *empty.Empty) (*structpb.ListValue, error) {
	glog.V(1).Info("Scan called")

	var (
		out = new(structpb.ListValue)
		err error
	)
	s.index.Ascend(func(key string, data []byte) bool {
		var value *structpb.Value
		if value, err = decode(data); err != nil {
			return false
		}
		out.Values = append(out.Values, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				keyField:   structpb.NewStringValue(key),
				valueField: value,
			},
		}))
		return ctx.Err() == nil
	})
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	return out, nil
}
