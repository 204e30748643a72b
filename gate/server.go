package gate

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/fixkme/evloop/errs"
	"github.com/fixkme/evloop/event"
	"github.com/fixkme/evloop/loop"
	"github.com/fixkme/evloop/mlog"
	"github.com/google/uuid"
	"github.com/panjf2000/gnet/v2"
)

type ServerOptions struct {
	gnet.Options
	Addr        string        //"tcp://127.0.0.1:2333"
	IdleTimeout time.Duration // 没有收到数据多久后断开
	// OnMessage 在gnet协程里调用，返回值写回客户端，为nil时原样回写
	OnMessage func(s *Session, data []byte) []byte
	// OnIdle 在事件循环协程里调用，返回true表示保留连接并重新计时
	OnIdle func(s *Session) bool
}

// Session 每个连接一个，空闲超时用事件循环的定时器实现
type Session struct {
	ID   string
	c    gnet.Conn
	ev   event.Handle // 只在事件循环协程里访问
	idle int64        // 超时次数
}

func (s *Session) RemoteAddr() string {
	if addr := s.c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

type Server struct {
	gnet.BuiltinEventEngine
	gnet.Engine // use for stop
	opt         *ServerOptions
	loop        *loop.Loop
	sessions    atomic.Int64
	booted      chan struct{}
}

func NewServer(opt *ServerOptions, l *loop.Loop) *Server {
	if opt.IdleTimeout <= 0 {
		opt.IdleTimeout = time.Minute
	}
	return &Server{opt: opt, loop: l, booted: make(chan struct{})}
}

// Run 阻塞到Stop
func (s *Server) Run() error {
	return gnet.Run(s, s.opt.Addr, gnet.WithOptions(s.opt.Options))
}

// Booted 开始监听后关闭，Run失败时永远不会关闭
func (s *Server) Booted() <-chan struct{} {
	return s.booted
}

func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.booted:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Engine.Stop(ctx)
}

// Sessions 当前连接数
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

// 在gnet.Run协程里被调用
func (s *Server) OnBoot(eng gnet.Engine) (action gnet.Action) {
	s.Engine = eng
	close(s.booted)
	mlog.Infof("gate listening on %s, idle timeout %v", s.opt.Addr, s.opt.IdleTimeout)
	return
}

func (s *Server) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	sess := &Session{ID: uuid.NewString(), c: c}
	ok := s.loop.TrySubmit(func() {
		sess.ev = s.loop.NewEvent("conn:"+sess.ID, s.onIdle, sess)
		if err := s.loop.AddTimer(sess.ev, s.opt.IdleTimeout); err != nil {
			mlog.Errorf("gate session %s add timer: %v", sess.ID, err)
		}
	})
	if !ok {
		// 没有设置Context，OnClose不会计数
		mlog.Warnf("gate reject %s: %v", c.RemoteAddr(), errs.TaskQueueFull)
		return nil, gnet.Close
	}
	c.SetContext(sess)
	s.sessions.Add(1)
	mlog.DebugMaskf(mlog.DebugStream, "gate session %s opened %s", sess.ID, sess.RemoteAddr())
	return
}

func (s *Server) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	sess, ok := c.Context().(*Session)
	if !ok {
		return
	}
	c.SetContext(nil)
	s.sessions.Add(-1)
	if err != nil && err != io.EOF {
		mlog.Infof("gate session %s closed: %v", sess.ID, err)
	}
	// 关闭时事件可能还在定时器里，必须在事件循环协程释放
	if !s.loop.TrySubmit(func() { s.loop.FreeEvent(sess.ev) }) {
		mlog.Errorf("gate session %s free event: %v", sess.ID, errs.TaskQueueFull)
	}
	return
}

func (s *Server) OnTraffic(c gnet.Conn) (r gnet.Action) {
	sess, ok := c.Context().(*Session)
	if !ok {
		return gnet.Close
	}
	data, err := c.Next(-1)
	if err != nil {
		mlog.Errorf("gate session %s read: %v", sess.ID, err)
		return gnet.Close
	}
	out := data
	if cb := s.opt.OnMessage; cb != nil {
		out = cb(sess, data)
	}
	if len(out) > 0 {
		if _, err = c.Write(out); err != nil {
			return gnet.Close
		}
	}
	// 频繁的重设会被定时器合并吸收
	ok = s.loop.TrySubmit(func() {
		if err := s.loop.AddTimer(sess.ev, s.opt.IdleTimeout); err != nil {
			mlog.DebugMaskf(mlog.DebugStream, "gate session %s touch: %v", sess.ID, err)
		}
	})
	if !ok {
		mlog.Warnf("gate session %s idle timer not refreshed: %v", sess.ID, errs.TaskQueueFull)
	}
	return gnet.None
}

// onIdle 事件循环协程
func (s *Server) onIdle(ev *event.Event) {
	if !ev.Timedout {
		return
	}
	ev.Timedout = false
	sess := ev.Data.(*Session)
	sess.idle++
	if cb := s.opt.OnIdle; cb != nil && cb(sess) {
		if err := s.loop.AddTimer(sess.ev, s.opt.IdleTimeout); err != nil {
			mlog.Warnf("gate session %s keep idle: %v", sess.ID, err)
		}
		return
	}
	mlog.DebugMaskf(mlog.DebugStream, "gate session %s idle timeout", sess.ID)
	if err := sess.c.CloseWithCallback(nil); err != nil {
		mlog.Warnf("gate session %s close: %v", sess.ID, err)
	}
}
