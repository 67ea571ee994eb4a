package mgmt_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tecu23/jetson-gateway/internal/config"
	"github.com/tecu23/jetson-gateway/internal/mgmt"
	"github.com/tecu23/jetson-gateway/internal/osinfo"
	"github.com/tecu23/jetson-gateway/internal/registry"
)

var _ = Describe("management listener", func() {
	var (
		workDir string
		reg     *registry.Registry
		lock    *registry.OpLock
		ln      net.Listener
		group   *errgroup.Group
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		workDir = GinkgoT().TempDir()
		Expect(os.Mkdir(filepath.Join(workDir, "stockfish"), 0755)).To(Succeed())
		Expect(os.WriteFile(
			filepath.Join(workDir, "stockfish", "stockfish15"),
			[]byte("#!/bin/sh\n"),
			0755,
		)).To(Succeed())
		Expect(os.WriteFile(
			filepath.Join(workDir, "jetson_agent.conf"),
			[]byte("stockfish 7010 stockfish15\n"),
			0644,
		)).To(Succeed())

		reg = registry.New()
		lock = registry.NewOpLock()

		var err error
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		group, ctx = errgroup.WithContext(ctx)

		deps := mgmt.Deps{
			Registry: reg,
			Lock:     lock,
			WorkDir:  workDir,
			ConfFile: "jetson_agent.conf",
			Host:     "jetson-test",
			Arch:     osinfo.LinuxX64,
			Logger:   zap.NewNop(),
			Launch: func(spec config.EngineSpec) error {
				_, ok := reg.AddEngine(filepath.Join(workDir, spec.Name), spec.Exe, spec.Port, spec.Name, spec.Args)
				if !ok {
					return nil
				}
				return nil
			},
		}

		group.Go(func() error {
			return mgmt.Serve(ctx, ln, deps, group)
		})
	})

	AfterEach(func() {
		cancel()
		ln.Close()
	})

	dial := func() net.Conn {
		conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(conn.SetDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
		return conn
	}

	It("loads the configured engine and reports scanisdone", func() {
		conn := dial()
		defer conn.Close()

		_, err := conn.Write([]byte("scan"))
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		Expect(err).NotTo(HaveOccurred())

		reply := string(buf[:n])
		Expect(reply).To(ContainSubstring("_7010_stockfish"))
		Expect(reply).To(HaveSuffix("scanisdone"))
		Expect(reg.FindEngine("stockfish")).To(BeTrue())
	})

	It("reports a registered engine and its connected client via query", func() {
		h, ok := reg.AddEngine(filepath.Join(workDir, "stockfish"), "stockfish15", "7010", "stockfish", "")
		Expect(ok).To(BeTrue())

		clientConn, serverConn := net.Pipe()
		defer clientConn.Close()
		defer serverConn.Close()

		_, ok = reg.AllocClient(h, serverConn, "10.0.0.9", "10.0.0.1", "jei_10.0.0.9_stockfish", "/req", "/rsp")
		Expect(ok).To(BeTrue())

		conn := dial()
		defer conn.Close()

		_, err := conn.Write([]byte("query"))
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		Expect(err).NotTo(HaveOccurred())

		reply := string(buf[:n])
		Expect(reply).To(ContainSubstring("Engine(stockfish) TCP Port(7010)"))
		Expect(reply).To(ContainSubstring("Client IP[10.0.0.9]"))
		Expect(reply).To(HaveSuffix("================================<<<querydone\n\n"))
	})

	It("serializes query behind an in-flight scan via the op lock", func() {
		lock.Acquire()

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer GinkgoRecover()
			conn := dial()
			defer conn.Close()
			_, err := conn.Write([]byte("query"))
			Expect(err).NotTo(HaveOccurred())
			buf := make([]byte, 4096)
			_, err = conn.Read(buf)
			Expect(err).NotTo(HaveOccurred())
		}()

		Consistently(done, 200*time.Millisecond).ShouldNot(BeClosed())

		lock.Release()
		Eventually(done, 2*time.Second).Should(BeClosed())
	})
})
