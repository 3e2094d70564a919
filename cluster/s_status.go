package cluster

import (
	"fmt"
	"io"

	"google.golang.org/grpc"
)

// statusServer forwards status messages from every worker onto a single channel read by the coordinator
type statusServer struct {
	statuses chan<- *StatusMsg
	done     <-chan struct{}
}

// createStatusServer creates a new status server. Handlers give up once done is closed.
func createStatusServer(statuses chan<- *StatusMsg, done <-chan struct{}) *statusServer {
	return &statusServer{statuses: statuses, done: done}
}

// Report receives the status messages of a single worker, in order
func (s *statusServer) Report(stream grpc.ServerStream) error {
	var count int64
	for {
		msg := &StatusMsg{}
		err := stream.RecvMsg(msg)
		if err == io.EOF {
			return stream.SendMsg(&Ack{Count: count})
		} else if err != nil {
			return err
		}
		count++
		select {
		case s.statuses <- msg:
		case <-s.done:
			return fmt.Errorf("coordinator is no longer accepting status messages")
		}
	}
}
