// Package grpctransport is a subgraph.Fetcher for subgraphs fronted by
// gRPC-JSON transcoding (grpc-gateway). Rather than deriving message
// descriptors from the subgraph's own .proto, it ships one generic envelope
// service: the HTTP tuple (method, url, headers, body) is carried as a
// single unary RPC, and the subgraph's grpc-gateway config is expected to
// transcode it back into the real GraphQL-over-HTTP call. Descriptors are
// built at runtime with protodesc/dynamicpb rather than generated .pb.go
// code, so the transport can talk to a proto service it has never seen at
// compile time.
package grpctransport

import (
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

var (
	envelopeFile   protoreflect.FileDescriptor
	fetchMethod    protoreflect.MethodDescriptor
	requestDesc    protoreflect.MessageDescriptor
	responseDesc   protoreflect.MessageDescriptor
)

func init() {
	fdProto := &descriptorpb.FileDescriptorProto{
		Name:    stringPtr("federon/subgraph_envelope.proto"),
		Package: stringPtr("federon.subgraph"),
		Syntax:  stringPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: stringPtr("FetchRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("method", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("url", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					mapField("headers", 3, "HeadersEntry"),
					field("body", 4, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				},
				NestedType: []*descriptorpb.DescriptorProto{mapEntryType("HeadersEntry")},
			},
			{
				Name: stringPtr("FetchResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("status_code", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					field("body", 2, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: stringPtr("SubgraphEnvelope"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:       stringPtr("Fetch"),
						InputType:  stringPtr(".federon.subgraph.FetchRequest"),
						OutputType: stringPtr(".federon.subgraph.FetchResponse"),
					},
				},
			},
		},
	}

	fd, err := protodesc.NewFile(fdProto, nil)
	if err != nil {
		panic("grpctransport: building envelope descriptor: " + err.Error())
	}
	envelopeFile = fd
	requestDesc = fd.Messages().ByName("FetchRequest")
	responseDesc = fd.Messages().ByName("FetchResponse")
	fetchMethod = fd.Services().ByName("SubgraphEnvelope").Methods().ByName("Fetch")
}

func stringPtr(s string) *string { return &s }
func int32Ptr(i int32) *int32    { return &i }

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	return &descriptorpb.FieldDescriptorProto{
		Name:   stringPtr(name),
		Number: int32Ptr(number),
		Type:   typ.Enum(),
		Label:  label.Enum(),
	}
}

func mapField(name string, number int32, entryType string) *descriptorpb.FieldDescriptorProto {
	label := descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	typ := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	return &descriptorpb.FieldDescriptorProto{
		Name:     stringPtr(name),
		Number:   int32Ptr(number),
		Type:     typ.Enum(),
		Label:    label.Enum(),
		TypeName: stringPtr("." + "federon.subgraph.FetchRequest." + entryType),
	}
}

func mapEntryType(name string) *descriptorpb.DescriptorProto {
	t := true
	return &descriptorpb.DescriptorProto{
		Name: stringPtr(name),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			field("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		},
		Options: &descriptorpb.MessageOptions{MapEntry: &t},
	}
}

// newRequestMessage builds a FetchRequest dynamicpb message for the given
// HTTP tuple, writing every (name, value) pair into the headers map in turn;
// the map holds one value per name, so only a header's last value is kept.
func newRequestMessage(method, url string, header map[string][]string, body []byte) *dynamicpb.Message {
	msg := dynamicpb.NewMessage(requestDesc)
	fields := requestDesc.Fields()
	msg.Set(fields.ByName("method"), protoreflect.ValueOfString(method))
	msg.Set(fields.ByName("url"), protoreflect.ValueOfString(url))
	msg.Set(fields.ByName("body"), protoreflect.ValueOfBytes(body))

	headersField := fields.ByName("headers")
	mapValue := msg.Mutable(headersField).Map()
	for name, values := range header {
		for _, v := range values {
			mapValue.Set(protoreflect.ValueOfString(name).MapKey(), protoreflect.ValueOfString(v))
		}
	}
	return msg
}

func readResponseMessage(msg protoreflect.Message) (int32, []byte) {
	fields := responseDesc.Fields()
	status := int32(msg.Get(fields.ByName("status_code")).Int())
	body := msg.Get(fields.ByName("body")).Bytes()
	return status, body
}
