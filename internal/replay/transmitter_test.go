package replay

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/udpreplay/internal/clock"
	"github.com/zsiec/udpreplay/internal/errors"
	"github.com/zsiec/udpreplay/internal/replay/pacer"
	"github.com/zsiec/udpreplay/internal/replay/packet"
	"github.com/zsiec/udpreplay/internal/replay/sender"
	"github.com/zsiec/udpreplay/internal/replay/source"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type sentPacket struct {
	at      time.Time
	payload []byte
}

type fakeSender struct {
	clock   clock.Clock
	packets []sentPacket
	err     error
	onSend  func(n int)
}

func (f *fakeSender) Send(payload []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.packets = append(f.packets, sentPacket{at: f.clock.Now(), payload: append([]byte(nil), payload...)})
	if f.onSend != nil {
		f.onSend(len(f.packets))
	}
	return len(payload), nil
}

func (f *fakeSender) Destination() string { return "127.0.0.1:5555" }

type fixture struct {
	clock  *clock.Mock
	sender *fakeSender
	tx     *Transmitter
}

func newFixture(t *testing.T, data string, spec packet.Spec, header int, freq float64) *fixture {
	t.Helper()
	clk := clock.NewMock(epoch)

	src, err := source.NewReader(strings.NewReader(data), source.Options{HeaderLines: header})
	require.NoError(t, err)
	packer, err := packet.New(spec)
	require.NoError(t, err)
	p, err := pacer.New(freq, pacer.WithClock(clk))
	require.NoError(t, err)

	snd := &fakeSender{clock: clk}
	tx, err := New(Config{Source: src, Packer: packer, Pacer: p, Sender: snd, Clock: clk})
	require.NoError(t, err)

	return &fixture{clock: clk, sender: snd, tx: tx}
}

const threeLines = "1.0,2.0,3.0\n4.0,5.0,6.0\n7.0,8.0\n"

func TestRunDynamicShape(t *testing.T) {
	f := newFixture(t, threeLines, packet.Spec{Width: packet.Float32}, 0, 100)

	stats, err := f.tx.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.sender.packets, 3)
	assert.Len(t, f.sender.packets[0].payload, 12)
	assert.Len(t, f.sender.packets[1].payload, 12)
	assert.Len(t, f.sender.packets[2].payload, 8)

	for i := 1; i < len(f.sender.packets); i++ {
		assert.Equal(t, 10*time.Millisecond, f.sender.packets[i].at.Sub(f.sender.packets[i-1].at))
	}

	last, err := packet.Unpack(f.sender.packets[2].payload, packet.Float32)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, last)

	assert.Equal(t, uint64(3), stats.Records)
	assert.Equal(t, uint64(3), stats.Sent)
	assert.Equal(t, uint64(32), stats.Bytes)
	assert.Equal(t, uint64(0), stats.Skipped)
	assert.InDelta(t, 100.0, stats.Frequency, 1e-9)
	assert.Equal(t, 30*time.Millisecond, stats.Elapsed)
	assert.InDelta(t, 100.0, stats.AverageFrequency(), 1e-9)
}

func TestRunFixedShapeSkipsMismatch(t *testing.T) {
	f := newFixture(t, threeLines, packet.Spec{Width: packet.Float32, Count: 3}, 0, 100)

	stats, err := f.tx.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.sender.packets, 2)
	for _, p := range f.sender.packets {
		assert.Len(t, p.payload, 12)
	}
	assert.Equal(t, uint64(3), stats.Records)
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(1), stats.Skipped)

	// The skipped record still occupies one period.
	assert.Len(t, f.clock.Sleeps(), 3)
}

func TestRunParseErrorStops(t *testing.T) {
	f := newFixture(t, "1.0,2.0\n1.0,abc,3.0\n5.0\n", packet.Spec{Width: packet.Float64}, 0, 100)

	stats, err := f.tx.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	assert.True(t, errors.IsFatal(err))

	var parseErr *source.ParseError
	require.True(t, stderrors.As(err, &parseErr))
	assert.Equal(t, 2, parseErr.Line)
	assert.Equal(t, 2, parseErr.Column)
	assert.Equal(t, "abc", parseErr.Value)

	require.Len(t, f.sender.packets, 1)
	assert.Equal(t, uint64(1), stats.Sent)
	// No sleep after the failing record.
	assert.Len(t, f.clock.Sleeps(), 1)
}

func TestRunHeaderSkip(t *testing.T) {
	data := "# sensor dump\ntime,value\n10,20\n30,40\n"
	f := newFixture(t, data, packet.Spec{Width: packet.Float64}, 2, 50)

	_, err := f.tx.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.sender.packets, 2)
	first, err := packet.Unpack(f.sender.packets[0].payload, packet.Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, first)
}

func TestRunSendFailuresContinue(t *testing.T) {
	f := newFixture(t, threeLines, packet.Spec{Width: packet.Float32}, 0, 100)
	f.sender.err = stderrors.New("network is unreachable")

	stats, err := f.tx.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Records)
	assert.Equal(t, uint64(3), stats.SendErrors)
	assert.Equal(t, uint64(0), stats.Sent)
	assert.Equal(t, uint64(0), stats.Bytes)
	assert.Len(t, f.clock.Sleeps(), 3)
}

func TestRunFloatOverflowCountsAsSendError(t *testing.T) {
	f := newFixture(t, "1e300,1\n2,3\n", packet.Spec{Width: packet.Float32}, 0, 100)

	stats, err := f.tx.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Records)
	assert.Equal(t, uint64(1), stats.SendErrors)
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(0), stats.Skipped)
	assert.Equal(t, uint64(8), stats.Bytes)
	assert.Len(t, f.clock.Sleeps(), 2)

	require.Len(t, f.sender.packets, 1)
	got, err := packet.Unpack(f.sender.packets[0].payload, packet.Float32)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, got)
}

func TestRunDoubleCarriesLargeValues(t *testing.T) {
	f := newFixture(t, "1e300,1\n", packet.Spec{Width: packet.Float64}, 0, 100)

	stats, err := f.tx.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(0), stats.SendErrors)
}

func TestRunCompensatesForWork(t *testing.T) {
	f := newFixture(t, threeLines, packet.Spec{Width: packet.Float32}, 0, 100)
	f.sender.onSend = func(int) { f.clock.Advance(4 * time.Millisecond) }

	_, err := f.tx.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{6 * time.Millisecond, 6 * time.Millisecond, 6 * time.Millisecond}, f.clock.Sleeps())
	for i := 1; i < len(f.sender.packets); i++ {
		assert.Equal(t, 10*time.Millisecond, f.sender.packets[i].at.Sub(f.sender.packets[i-1].at))
	}
}

func TestRunOverrunCounted(t *testing.T) {
	f := newFixture(t, threeLines, packet.Spec{Width: packet.Float32}, 0, 100)
	f.sender.onSend = func(int) { f.clock.Advance(15 * time.Millisecond) }

	stats, err := f.tx.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.clock.Sleeps())
	assert.Equal(t, uint64(3), stats.Overruns)
}

func TestRunCancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		f := newFixture(t, threeLines, packet.Spec{Width: packet.Float32}, 0, 100)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		stats, err := f.tx.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, uint64(0), stats.Records)
		assert.Empty(t, f.sender.packets)
	})

	t.Run("during sleep", func(t *testing.T) {
		f := newFixture(t, threeLines, packet.Spec{Width: packet.Float32}, 0, 100)
		ctx, cancel := context.WithCancel(context.Background())
		f.sender.onSend = func(n int) {
			if n == 2 {
				cancel()
			}
		}

		stats, err := f.tx.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.IsType(err, errors.ErrorTypeParse))
		assert.Equal(t, uint64(2), stats.Sent)
		assert.False(t, f.tx.Running())
	})
}

func TestNewValidation(t *testing.T) {
	clk := clock.NewMock(epoch)
	src, err := source.NewReader(strings.NewReader(""), source.Options{})
	require.NoError(t, err)
	packer, err := packet.New(packet.Spec{Width: packet.Float32})
	require.NoError(t, err)
	p, err := pacer.New(10, pacer.WithClock(clk))
	require.NoError(t, err)
	snd := &fakeSender{clock: clk}

	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{"missing source", Config{Packer: packer, Pacer: p, Sender: snd}, "source is required"},
		{"missing packer", Config{Source: src, Pacer: p, Sender: snd}, "packer is required"},
		{"missing pacer", Config{Source: src, Packer: packer, Sender: snd}, "pacer is required"},
		{"missing sender", Config{Source: src, Packer: packer, Pacer: p}, "sender is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := New(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, tx)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	tx, err := New(Config{Source: src, Packer: packer, Pacer: p, Sender: snd})
	require.NoError(t, err)
	stats, err := tx.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Elapsed: stats.Elapsed}, stats)
}

func TestAverageFrequency(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.AverageFrequency())
	assert.Equal(t, 0.0, Stats{Records: 5}.AverageFrequency())
	assert.InDelta(t, 50.0, Stats{Records: 100, Elapsed: 2 * time.Second}.AverageFrequency(), 1e-9)
}

func TestRunLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-time loopback test in short mode")
	}

	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	ctx := context.Background()
	snd, err := sender.Dial(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	defer snd.Close()

	src, err := source.NewReader(strings.NewReader(threeLines), source.Options{})
	require.NoError(t, err)
	packer, err := packet.New(packet.Spec{Width: packet.Float64})
	require.NoError(t, err)
	p, err := pacer.New(200)
	require.NoError(t, err)

	tx, err := New(Config{Source: src, Packer: packer, Pacer: p, Sender: snd})
	require.NoError(t, err)

	stats, err := tx.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Sent)

	want := [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8}}
	buf := make([]byte, 1500)
	for _, expected := range want {
		require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := listener.ReadFromUDP(buf)
		require.NoError(t, err)
		values, err := packet.Unpack(buf[:n], packet.Float64)
		require.NoError(t, err)
		assert.Equal(t, expected, values)
	}
}
