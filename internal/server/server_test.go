package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/gravsim/internal/app"
	"github.com/san-kum/gravsim/internal/geom"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/logging"
	"github.com/san-kum/gravsim/internal/server"
)

func postJSON(url string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	resp, err := http.Post(url, "application/json", &buf)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decodeState(resp *http.Response) gravity.State {
	defer resp.Body.Close()
	var s gravity.State
	Expect(json.NewDecoder(resp.Body).Decode(&s)).To(Succeed())
	return s
}

var _ = Describe("Server", func() {
	var (
		sim       *app.Simulation
		srv       *server.Server
		ts        *httptest.Server
		staticDir string
	)

	BeforeEach(func() {
		staticDir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>gravity</h1>"), 0644)).To(Succeed())

		sim = app.New()
		srv = server.New(sim, logging.Discard(), server.Options{StaticDir: staticDir})
		ts = httptest.NewServer(srv.Handler())
	})

	AfterEach(func() {
		srv.Hub().Close()
		ts.Close()
	})

	Describe("POST /gravity", func() {
		It("installs and echoes the snapshot", func() {
			in := gravity.State{
				StepS: 10,
				Entities: []gravity.Entity{
					{MassKg: 1, PositionM: geom.Vec2{X: 0, Y: 0}, VelocityMs: geom.Vec2{X: 0, Y: 0}},
				},
			}

			resp := postJSON(ts.URL+"/gravity", in)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeState(resp)).To(Equal(in))
			Expect(sim.Snapshot()).To(Equal(in))
		})

		It("rejects malformed bodies", func() {
			resp, err := http.Post(ts.URL+"/gravity", "application/json", strings.NewReader("{not json"))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects other methods", func() {
			req, _ := http.NewRequest(http.MethodPut, ts.URL+"/gravity", nil)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("wire format", func() {
		It("uses the documented field names", func() {
			body := `{"step_s":10,"time_s":0,"entities":[{"mass_kg":1,"position_m":{"x":0,"y":0},"velocity_ms":{"x":0,"y":0}}]}`
			resp, err := http.Post(ts.URL+"/gravity", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			raw, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(MatchJSON(body))
		})
	})

	Describe("POST /gravity/step_naive", func() {
		It("steps a single body by one step", func() {
			postJSON(ts.URL+"/gravity", gravity.State{
				StepS:    10,
				Entities: []gravity.Entity{{MassKg: 1}},
			}).Body.Close()

			out := decodeState(postJSON(ts.URL+"/gravity/step_naive", nil))

			Expect(out.TimeS).To(Equal(10.0))
			Expect(out.Entities).To(HaveLen(1))
			Expect(out.Entities[0].PositionM).To(Equal(geom.Vec2{}))
		})

		It("reports coincident bodies as nulls and flips readiness", func() {
			postJSON(ts.URL+"/gravity", gravity.State{
				StepS: 1,
				Entities: []gravity.Entity{
					{MassKg: 1, PositionM: geom.Vec2{X: 3, Y: 3}},
					{MassKg: 1, PositionM: geom.Vec2{X: 3, Y: 3}},
				},
			}).Body.Close()

			out := decodeState(postJSON(ts.URL+"/gravity/step_naive", nil))
			Expect(math.IsNaN(out.Entities[0].VelocityMs.X)).To(BeTrue())

			resp, err := http.Get(ts.URL + "/ready")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("clock overflow", func() {
		BeforeEach(func() {
			postJSON(ts.URL+"/gravity", gravity.State{
				StepS:    1e308,
				TimeS:    1.7e308,
				Entities: []gravity.Entity{},
			}).Body.Close()
		})

		It("still answers a step with a complete document", func() {
			resp := postJSON(ts.URL+"/gravity/step_naive", nil)
			raw, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(raw).To(MatchJSON(`{"step_s":1e308,"time_s":null,"entities":[]}`))
			Expect(math.IsInf(sim.Snapshot().TimeS, 1)).To(BeTrue())
		})
	})

	Describe("GET /gravity", func() {
		It("returns the current snapshot without stepping", func() {
			resp, err := http.Get(ts.URL + "/gravity")
			Expect(err).NotTo(HaveOccurred())
			s := decodeState(resp)
			Expect(s.StepS).To(Equal(10.0))
			Expect(s.TimeS).To(BeZero())
			Expect(sim.Snapshot().TimeS).To(BeZero())
		})
	})

	It("echoes or assigns a request id", func() {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
		req.Header.Set(server.RequestIDHeader, "req-42")
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.Header.Get(server.RequestIDHeader)).To(Equal("req-42"))

		resp, err = http.Get(ts.URL + "/health")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.Header.Get(server.RequestIDHeader)).NotTo(BeEmpty())
	})

	It("serves static files", func() {
		resp, err := http.Get(ts.URL + "/static/")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("gravity"))
	})

	Describe("GET /gravity/stream", func() {
		It("pushes the current snapshot and every step", func() {
			wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/gravity/stream"
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			read := func() gravity.State {
				conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				var s gravity.State
				Expect(conn.ReadJSON(&s)).To(Succeed())
				return s
			}

			Expect(read().TimeS).To(BeZero())
			Eventually(srv.Hub().Len).Should(Equal(1))

			postJSON(ts.URL+"/gravity/step_naive", nil).Body.Close()
			Expect(read().TimeS).To(Equal(10.0))
		})

		It("delivers frames whose clock overflowed", func() {
			wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/gravity/stream"
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			read := func() gravity.State {
				conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				var s gravity.State
				Expect(conn.ReadJSON(&s)).To(Succeed())
				return s
			}

			read()
			Eventually(srv.Hub().Len).Should(Equal(1))

			postJSON(ts.URL+"/gravity", gravity.State{StepS: 1e308, TimeS: 1.7e308}).Body.Close()
			Expect(read().TimeS).To(Equal(1.7e308))

			postJSON(ts.URL+"/gravity/step_naive", nil).Body.Close()
			Expect(math.IsNaN(read().TimeS)).To(BeTrue())
		})
	})
})
