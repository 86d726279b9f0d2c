// Package net is the TCP order-entry transport: it frames NewOrder and
// CancelOrder messages off the wire, routes them into a book.Book, and
// reports back fills and errors to the originating client session.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"levelforge/internal/book"
	"levelforge/internal/level"
	"levelforge/internal/workerpool"
)

const (
	MaxRecvSize        = 4 * 1024
	defaultNWorkers     = 10
	defaultConnTimeout  = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession tracks one connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a decoded wire message to the client that sent it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// TickSource supplies the caller's monotonic millisecond tick, per the
// level engine's no-wall-clock-authority design.
type TickSource func() uint64

// Server is a single-instrument order-entry TCP server fronting a
// book.Book. Every accepted connection is served by the worker pool; a
// successful NewOrder/CancelOrder is applied to the book and any resulting
// transactions are reported back over the same connection.
type Server struct {
	address string
	port    int
	book    *book.Book
	now     TickSource

	pool   workerpool.Pool
	cancel context.CancelFunc

	clientSessionsLock sync.Mutex
	clientSessions     map[string]ClientSession
	clientMessages     chan ClientMessage
}

// New returns a Server fronting book, listening on address:port.
func New(address string, port int, b *book.Book, now TickSource) *Server {
	return &Server{
		address:        address,
		port:           port,
		book:           b,
		now:            now,
		pool:           workerpool.New(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().Str("address", conn.LocalAddr().String()).Msg("new client added")
			s.addClientSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.handleMessage(message); err != nil {
				log.Error().
					Err(err).
					Str("clientAddress", message.clientAddress).
					Msg("error handling message")
				s.ReportError(message.clientAddress, err)
			}
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) error {
	switch message.message.GetType() {
	case NewOrder:
		order, ok := message.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		result, err := s.book.PlaceOrder(order.Descriptor(), s.now())
		if err != nil {
			s.ReportError(message.clientAddress, err)
			log.Error().Err(err).Str("clientAddress", message.clientAddress).Msg("error placing order")
			return nil
		}
		s.ReportTransactions(message.clientAddress, order.Side, result.Transactions)
	case CancelOrder:
		order, ok := message.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		if err := s.book.CancelOrder(order.Side, order.Price, order.ID); err != nil {
			s.ReportError(message.clientAddress, err)
			log.Error().
				Err(err).
				Str("clientAddress", message.clientAddress).
				Str("id", order.ID.String()).
				Msg("error cancelling order")
		}
	default:
		log.Error().Int("messageType", int(message.message.GetType())).Msg("invalid message type")
		return ErrInvalidMessageType
	}
	return nil
}

// ReportTransactions sends one execution report per transaction back to the
// originating client.
func (s *Server) ReportTransactions(clientAddress string, side level.Side, txs []level.Transaction) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return
	}
	for _, tx := range txs {
		wire, err := generateWireTradeReport(side, tx)
		if err != nil {
			log.Error().Err(err).Msg("failed to serialize execution report")
			continue
		}
		if _, err := client.conn.Write(wire); err != nil {
			delete(s.clientSessions, clientAddress)
			return
		}
	}
}

func (s *Server) ReportError(clientAddress string, err error) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	report, serErr := generateWireErrorReport(err)
	if serErr != nil {
		return serErr
	}

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, writeErr := client.conn.Write(report); writeErr != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", writeErr)
	}
	return nil
}

// handleConnection reads one message off conn, dispatches it to
// sessionHandler, and re-enqueues the connection for its next message.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.LocalAddr().String()).Msg("failed setting deadline")
		s.closeConnection(conn)
		return nil
	}

	buffer := make([]byte, MaxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			s.deleteClientSession(conn.LocalAddr().String())
			s.closeConnection(conn)
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.LocalAddr().String()).Msg("error parsing message")
			s.deleteClientSession(conn.LocalAddr().String())
			s.closeConnection(conn)
			return nil
		}

		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.LocalAddr().String(),
		}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) closeConnection(conn net.Conn) {
	if err := conn.Close(); err != nil {
		log.Error().Str("address", conn.LocalAddr().String()).Err(err).Msg("error closing connection")
	}
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	s.clientSessions[conn.LocalAddr().String()] = ClientSession{conn: conn}
}

func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	delete(s.clientSessions, address)
}
