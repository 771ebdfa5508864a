package mail

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

const (
	stationAddr   = "300234010753370@rockblock.rock7.com"
	otherAddr     = "300234010111111@rockblock.rock7.com"
	allMailFolder = "[Gmail]/All Mail"
)

var mailBase = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func TestIMAPFetcher_NoNetworkPaths(t *testing.T) {
	f := NewIMAPFetcher(IMAPConfig{Addr: "127.0.0.1:1"}, nil)
	ctx := context.Background()

	got, err := f.FetchLast(ctx, "a@b", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, f.Delete(ctx, nil))
	assert.Error(t, f.Delete(ctx, []string{"not-a-uid"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.FetchNew(cancelled, "a@b")
	assert.ErrorIs(t, err, context.Canceled)
}

type seedMail struct {
	from  string
	id    string
	sent  time.Time
	momsn int
}

func rawMail(m seedMail) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	b.WriteString("To: stations@example.org\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", m.sent.Format(time.RFC1123Z))
	if m.id != "" {
		fmt.Fprintf(&b, "Message-Id: <%s>\r\n", m.id)
	}
	b.WriteString("Content-Type: text/plain\r\n\r\n")
	fmt.Fprintf(&b, "MOMSN: %d\r\nData: No Data\r\n", m.momsn)
	return b.Bytes()
}

// startIMAP serves an in-memory mailbox over TLS on loopback. The backend's
// own seed message in INBOX comes from contact@example.org.
func startIMAP(t *testing.T, inboxMail, allMail []seedMail) IMAPConfig {
	t.Helper()

	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	require.NoError(t, err)
	require.NoError(t, user.CreateMailbox(allMailFolder))

	seed := func(folder string, mails []seedMail) {
		mbox, err := user.GetMailbox(folder)
		require.NoError(t, err)
		for _, m := range mails {
			require.NoError(t, mbox.CreateMessage(nil, m.sent, bytes.NewBuffer(rawMail(m))))
		}
	}
	seed("INBOX", inboxMail)
	seed(allMailFolder, allMail)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tlsLn := tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{selfSigned(t)}})

	s := server.New(be)
	s.AllowInsecureAuth = true
	go func() { _ = s.Serve(tlsLn) }()
	t.Cleanup(func() { _ = s.Close() })

	return IMAPConfig{
		Addr:          ln.Addr().String(),
		Username:      "username",
		Password:      "password",
		AllMailFolder: allMailFolder,
		TLSConfig:     &tls.Config{InsecureSkipVerify: true},
	}
}

func selfSigned(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func ids(raws []telemetry.RawTransmission) []string {
	out := make([]string, len(raws))
	for i, r := range raws {
		out[i] = r.ID
	}
	return out
}

func TestIMAPFetcher_FetchNew(t *testing.T) {
	// Appended out of send order so UID order and Date order disagree.
	cfg := startIMAP(t, []seedMail{
		{from: stationAddr, id: "late@rockblock", sent: mailBase.Add(2 * time.Hour), momsn: 3},
		{from: otherAddr, id: "other@rockblock", sent: mailBase, momsn: 9},
		{from: stationAddr, id: "early@rockblock", sent: mailBase, momsn: 1},
		{from: stationAddr, sent: mailBase.Add(time.Hour), momsn: 2},
	}, nil)
	f := NewIMAPFetcher(cfg, nil)

	got, err := f.FetchNew(context.Background(), stationAddr)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// INBOX already holds UID 6, so ours are 7 to 10.
	assert.Equal(t, []string{"early@rockblock", "INBOX/10", "late@rockblock"}, ids(got))
	assert.Equal(t, []string{"9", "10", "7"}, []string{got[0].Handle, got[1].Handle, got[2].Handle})
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].ReceivedAt.After(got[i-1].ReceivedAt), "not sorted by ReceivedAt at %d", i)
	}
	assert.True(t, got[0].ReceivedAt.Equal(mailBase))
	assert.Contains(t, got[0].Body, "MOMSN: 1")
}

func TestIMAPFetcher_FetchNewNoMatch(t *testing.T) {
	cfg := startIMAP(t, []seedMail{{from: otherAddr, id: "x@rockblock", sent: mailBase}}, nil)
	f := NewIMAPFetcher(cfg, nil)

	got, err := f.FetchNew(context.Background(), stationAddr)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIMAPFetcher_FetchLast(t *testing.T) {
	var all []seedMail
	for i := 0; i < 4; i++ {
		all = append(all, seedMail{
			from:  stationAddr,
			id:    fmt.Sprintf("m%d@rockblock", i),
			sent:  mailBase.Add(time.Duration(i) * 50 * time.Minute),
			momsn: i,
		})
	}
	all = append(all, seedMail{from: otherAddr, id: "other@rockblock", sent: mailBase.Add(5 * time.Hour)})
	cfg := startIMAP(t, nil, all)
	f := NewIMAPFetcher(cfg, nil)
	ctx := context.Background()

	got, err := f.FetchLast(ctx, stationAddr, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2@rockblock", "m3@rockblock"}, ids(got))

	got, err = f.FetchLast(ctx, stationAddr, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0@rockblock", "m1@rockblock", "m2@rockblock", "m3@rockblock"}, ids(got))
}

func TestIMAPFetcher_DeleteThenRefetch(t *testing.T) {
	cfg := startIMAP(t, []seedMail{
		{from: stationAddr, id: "a@rockblock", sent: mailBase, momsn: 1},
		{from: stationAddr, id: "b@rockblock", sent: mailBase.Add(time.Hour), momsn: 2},
	}, nil)
	f := NewIMAPFetcher(cfg, nil)
	ctx := context.Background()

	got, err := f.FetchNew(ctx, stationAddr)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NoError(t, f.Delete(ctx, []string{got[0].Handle}))

	got, err = f.FetchNew(ctx, stationAddr)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@rockblock"}, ids(got))
}

func TestIMAPFetcher_BadCredentials(t *testing.T) {
	cfg := startIMAP(t, nil, nil)
	cfg.Password = "wrong"
	f := NewIMAPFetcher(cfg, nil)

	_, err := f.FetchNew(context.Background(), stationAddr)
	assert.ErrorContains(t, err, "imap login")
}
