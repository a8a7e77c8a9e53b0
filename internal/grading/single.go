package grading

import (
	"fmt"
	"math"
)

// Funções puras de graduação de uma perna contra números finais.
// Nenhuma faz I/O; dados externos (placar, estatísticas) chegam por parâmetro.

// Spread gradua uma aposta de handicap. A linha é relativa ao lado apostado
// (ex.: favorito da casa -6.5 => selScore é o placar da casa, line=-6.5).
// Igualdade exata após o ajuste é push.
func Spread(selScore, oppScore int, line float64) Grade {
	adjusted := float64(selScore) + line
	switch {
	case adjusted > float64(oppScore):
		return won(fmt.Sprintf("covered %.1f (%d-%d)", line, selScore, oppScore))
	case adjusted < float64(oppScore):
		return lost(fmt.Sprintf("failed to cover %.1f (%d-%d)", line, selScore, oppScore))
	default:
		return push(fmt.Sprintf("landed on the line %.1f", line))
	}
}

// Moneyline gradua vitória simples. Empate é push (alguns esportes permitem).
func Moneyline(selScore, oppScore int) Grade {
	switch {
	case selScore > oppScore:
		return won(fmt.Sprintf("outright win %d-%d", selScore, oppScore))
	case selScore < oppScore:
		return lost(fmt.Sprintf("outright loss %d-%d", selScore, oppScore))
	default:
		return push(fmt.Sprintf("tie %d-%d", selScore, oppScore))
	}
}

// OverUnder gradua um total contra a linha. Push só existe com linha inteira:
// placares são inteiros, então linha fracionária nunca empata.
// Reaproveitada por totais de jogo, props de jogador e team totals.
func OverUnder(over bool, total float64, line float64) Grade {
	if total == line && isWhole(line) {
		return push(fmt.Sprintf("total %.1f landed on the line", total))
	}
	overWon := total > line
	if over == overWon {
		return won(fmt.Sprintf("total %.1f vs line %.1f", total, line))
	}
	return lost(fmt.Sprintf("total %.1f vs line %.1f", total, line))
}

// Total gradua o total combinado de pontos do jogo.
func Total(over bool, homeScore, awayScore int, line float64) Grade {
	return OverUnder(over, float64(homeScore+awayScore), line)
}

// PlayerProp gradua uma estatística de jogador contra a linha.
// A estatística é obrigatória: ausência deve ser tratada antes, pelo chamador,
// via ErrStatUnavailable do provedor — nunca chega aqui como zero.
func PlayerProp(over bool, statValue float64, line float64) Grade {
	return OverUnder(over, statValue, line)
}

// TeamTotal gradua o total de pontos de um único time (game prop),
// inclusive variantes por período quando o placar do período é fornecido.
func TeamTotal(over bool, teamScore int, line float64) Grade {
	return OverUnder(over, float64(teamScore), line)
}

func isWhole(f float64) bool { return f == math.Trunc(f) }
