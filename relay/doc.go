// Package relay 实现每条客户端连接上的对话编排。
//
// 连接生命周期：CONNECTED → {AWAITING_INPUT ⇄ PROCESSING} → CLOSED。
// 二进制帧走 归一化 → 转写 → 生成 → 合成；文本帧直接进入生成阶段。
// 单轮失败以 error 帧回报，连接与会话保持可用。关闭只执行一次：
// 取消进行中的下游调用、结束会话并记录指标。
package relay
