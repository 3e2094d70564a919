package cluster

import (
	"io"

	"github.com/go-sif/tablegen/logging"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type logServer struct {
	logger *zap.Logger
}

// createLogServer creates a log server
func createLogServer(logger *zap.Logger) *logServer {
	return &logServer{logger: logger}
}

// Log messages to the console coming from workers
func (s *logServer) Log(stream grpc.ServerStream) error {
	var count int64
	for {
		message := &LogMsg{}
		err := stream.RecvMsg(message)
		if err == io.EOF {
			// Then we're out of messages to print and no errors have occurred, so Ack
			return stream.SendMsg(&Ack{Count: count})
		} else if err != nil {
			return err
		}
		count++
		if ce := s.logger.Check(logging.ToZapLevel(message.Level), message.Message); ce != nil {
			ce.Write(zap.String("source", message.Source), zap.String("level", logging.LogLevelToString(message.Level)))
		}
	}
}
