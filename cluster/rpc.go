package cluster

import (
	"google.golang.org/grpc"
)

// Each service consists of a single client-streaming method, which the client closes to receive an Ack
const (
	instancePushMethod = "/tablegen.InstanceService/Push"
	statusReportMethod = "/tablegen.StatusService/Report"
	logMethod          = "/tablegen.LogService/Log"
)

// instanceServiceServer receives Envelopes from workers
type instanceServiceServer interface {
	Push(stream grpc.ServerStream) error
}

// statusServiceServer receives StatusMsgs from workers
type statusServiceServer interface {
	Report(stream grpc.ServerStream) error
}

// logServiceServer receives LogMsgs from workers
type logServiceServer interface {
	Log(stream grpc.ServerStream) error
}

var instanceServiceDesc = grpc.ServiceDesc{
	ServiceName: "tablegen.InstanceService",
	HandlerType: (*instanceServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{{
		StreamName: "Push",
		Handler: func(srv interface{}, stream grpc.ServerStream) error {
			return srv.(instanceServiceServer).Push(stream)
		},
		ClientStreams: true,
	}},
}

var statusServiceDesc = grpc.ServiceDesc{
	ServiceName: "tablegen.StatusService",
	HandlerType: (*statusServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{{
		StreamName: "Report",
		Handler: func(srv interface{}, stream grpc.ServerStream) error {
			return srv.(statusServiceServer).Report(stream)
		},
		ClientStreams: true,
	}},
}

var logServiceDesc = grpc.ServiceDesc{
	ServiceName: "tablegen.LogService",
	HandlerType: (*logServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{{
		StreamName: "Log",
		Handler: func(srv interface{}, stream grpc.ServerStream) error {
			return srv.(logServiceServer).Log(stream)
		},
		ClientStreams: true,
	}},
}
