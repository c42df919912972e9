package rendezvous

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/stun"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natprobe/internal/core/probe"
	"github.com/dep2p/go-natprobe/internal/core/protocol"
	"github.com/dep2p/go-natprobe/pkg/interfaces"
	"github.com/dep2p/go-natprobe/pkg/types"
)

func startServer(t *testing.T, legacy bool, reg prometheus.Registerer, hooks ...func(*Server)) *Server {
	t.Helper()
	s := NewServer(Config{ListenAddr: "127.0.0.1:0", LegacyMappedAddress: legacy}, NewMetrics(reg))
	for _, h := range hooks {
		h(s)
	}
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newConn(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type result struct {
	addr      string
	port      int
	localPort int
	err       error
}

func probeOnce(t *testing.T, srv *Server, conn net.PacketConn, loc types.LocationPayload) result {
	t.Helper()
	p, err := probe.NewProber(probe.DefaultConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	ch := make(chan result, 1)
	l := interfaces.ListenerFuncs{
		EstablishedFunc: func(addr string, port, localPort int) {
			ch <- result{addr: addr, port: port, localPort: localPort}
		},
		ErrorFunc: func(err error) { ch <- result{err: err} },
	}
	p.StartProbe(conn, "127.0.0.1", srv.Addr().(*net.UDPAddr).Port, loc, l)

	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("探测未完成")
		return result{}
	}
}

func TestServer_ReflectsSourceAddress(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		reg := prometheus.NewRegistry()
		var mu sync.Mutex
		var got []types.LocationPayload
		srv := startServer(t, legacy, reg, func(s *Server) {
			s.onLocation = func(_ net.Addr, loc types.LocationPayload) {
				mu.Lock()
				got = append(got, loc)
				mu.Unlock()
			}
		})
		conn := newConn(t)

		r := probeOnce(t, srv, conn, types.LocationPayload{CallerID: 42, Latitude: 1.25, Longitude: -3.5})
		require.NoError(t, r.err)

		local := conn.LocalAddr().(*net.UDPAddr).Port
		assert.Equal(t, "127.0.0.1", r.addr)
		assert.Equal(t, local, r.port)
		assert.Equal(t, local, r.localPort)

		mu.Lock()
		require.Len(t, got, 1)
		assert.Equal(t, int64(42), got[0].CallerID)
		assert.Equal(t, -3.5, got[0].Longitude)
		mu.Unlock()

		assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.requests.WithLabelValues(resultReflected)))
	}
	t.Log("✅ 服务端回写源地址（XOR 与 legacy）")
}

func TestServer_IgnoresMalformed(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := startServer(t, false, reg)
	conn := newConn(t)

	// 非协议数据
	_, err := conn.WriteTo([]byte("hello"), srv.Addr())
	require.NoError(t, err)

	// 方法不符的请求
	m, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	require.NoError(t, err)
	_, err = conn.WriteTo(m.Raw, srv.Addr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(srv.metrics.requests.WithLabelValues(resultMalformed)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 64)
	_, _, err = conn.ReadFrom(buf)
	assert.Error(t, err, "无效请求不应得到回复")

	t.Log("✅ 忽略无效请求")
}

func TestServer_BadPayloadStillReflected(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := startServer(t, false, reg)
	conn := newConn(t)

	req, err := protocol.NewRequest([]byte{0xff})
	require.NoError(t, err)
	_, err = conn.WriteTo(req.Bytes(), srv.Addr())
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	assert.True(t, req.Matches(buf[:n]))

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.requests.WithLabelValues(resultBadPayload)))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.requests.WithLabelValues(resultReflected)))

	t.Log("✅ 位置负载无效时仍回写地址")
}

func TestServer_CloseIdempotent(t *testing.T) {
	srv := NewServer(Config{ListenAddr: "127.0.0.1:0"}, nil)
	require.NoError(t, srv.Start(context.Background()))
	require.NotNil(t, srv.Addr())

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerClosed)

	t.Log("✅ 关闭幂等")
}
